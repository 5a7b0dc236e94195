package snapshot

import "context"

// Store persists the cache snapshot as a single document.
//
// Load never fails: a missing or unreadable document is an expected cold
// start and yields an empty snapshot. Save overwrites the full document;
// callers rely on the refresh scheduler's single-flight guarantee rather
// than store-level locking.
type Store interface {
	Load(ctx context.Context) *Snapshot
	Save(ctx context.Context, snap *Snapshot) error
}
