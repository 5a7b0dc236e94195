package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore persists the snapshot as one JSON document on local disk.
//
// Writes go through a temp file and rename, so an interrupted save leaves
// either the old document or none at all. "None at all" degrades to a cold
// start on the next load, which is acceptable.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Load reads the snapshot document. Missing file or parse failure falls back
// to an empty snapshot; neither is an error.
func (s *FileStore) Load(ctx context.Context) *Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		loadFallbacks.WithLabelValues("missing").Inc()
		s.logger.Info().Str("path", s.path).Msg("No cache file found, starting fresh")
		return New()
	}

	snap := New()
	if err := json.Unmarshal(data, snap); err != nil {
		loadFallbacks.WithLabelValues("parse").Inc()
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Cache file unparseable, starting fresh")
		return New()
	}
	if snap.Queries == nil {
		snap.Queries = make(map[string]*QueryEntry)
	}

	s.logger.Info().
		Str("path", s.path).
		Int("queries", len(snap.Queries)).
		Int("update_count", snap.UpdateCountToday).
		Msg("Loaded cache snapshot")

	return snap
}

// Save serializes the full snapshot and atomically replaces the document.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		storeErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		storeErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		storeErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		storeErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		storeErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	saves.Inc()
	sizeBytes.WithLabelValues("file").Set(float64(len(data)))
	s.logger.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("Saved cache snapshot")

	return nil
}
