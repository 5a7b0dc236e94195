// Package holders loads the offline NFT holder-count snapshots written by
// the fetch-holders batch job and derives per-user allowance ceilings from
// them.
package holders

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultBaseAllowance is the daily sending allowance every user gets.
const DefaultBaseAllowance = 30

// Holding is one wallet's NFT count.
type Holding struct {
	Wallet string `json:"wallet"`
	Count  int64  `json:"count"`
}

// File is the holder snapshot document written by the batch job.
type File struct {
	Holders     []Holding `json:"holders"`
	LastUpdated int64     `json:"last_updated"`
}

// Index is a wallet to NFT-count lookup built from holder snapshot files.
type Index struct {
	counts map[string]int64
	logger zerolog.Logger
}

// LoadIndex reads and merges the given holder snapshot files. Wallets are
// normalized to lower case. A missing or unparseable file is logged and
// skipped; the batch job that writes them runs out of process and may not
// have produced output yet.
func LoadIndex(paths []string, logger zerolog.Logger) *Index {
	ix := &Index{
		counts: make(map[string]int64),
		logger: logger,
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Info().Str("path", path).Msg("No holder snapshot found, skipping")
			continue
		}

		var file File
		if err := json.Unmarshal(data, &file); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Holder snapshot unparseable, skipping")
			continue
		}

		for _, h := range file.Holders {
			wallet := strings.ToLower(strings.TrimSpace(h.Wallet))
			if wallet == "" {
				continue
			}
			ix.counts[wallet] += h.Count
		}

		logger.Info().
			Str("path", path).
			Int("holders", len(file.Holders)).
			Msg("Loaded holder snapshot")
	}

	return ix
}

// Count returns the NFT count held by wallet (case-insensitive).
func (ix *Index) Count(wallet string) int64 {
	return ix.counts[strings.ToLower(strings.TrimSpace(wallet))]
}

// Holders returns the number of distinct holding wallets.
func (ix *Index) Holders() int {
	return len(ix.counts)
}

// Ceiling derives the allowance ceiling for a user owning the given
// wallets: base allowance plus perNFT for every NFT held across them.
func (ix *Index) Ceiling(wallets []string, base, perNFT int64) int64 {
	ceiling := base
	if perNFT <= 0 {
		return ceiling
	}
	for _, wallet := range wallets {
		ceiling += perNFT * ix.Count(wallet)
	}
	return ceiling
}
