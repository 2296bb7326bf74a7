// Package versioner decides when a write must be preceded by an immutable
// snapshot of the current record state, and performs that snapshot.
package versioner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
	"github.com/dmphub/dmpsync/pkg/storage"
)

// DefaultDebounce is the window within which rapid same-owner edits
// collapse into the existing latest version.
const DefaultDebounce = time.Hour

// Versioner gates and performs version snapshots.
type Versioner struct {
	store    storage.RecordStore
	archive  storage.BlobStore // optional JSON mirror of every snapshot
	debounce time.Duration
	now      func() time.Time
}

// Option configures a Versioner.
type Option func(*Versioner)

// WithArchive mirrors every snapshot to the given blob store.
func WithArchive(a storage.BlobStore) Option {
	return func(v *Versioner) { v.archive = a }
}

// WithDebounce overrides the same-owner debounce window.
func WithDebounce(d time.Duration) Option {
	return func(v *Versioner) {
		if d > 0 {
			v.debounce = d
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(v *Versioner) { v.now = now }
}

func New(store storage.RecordStore, opts ...Option) *Versioner {
	v := &Versioner{
		store:    store,
		debounce: DefaultDebounce,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ShouldSnapshot reports whether accepting a write from writerID requires
// snapshotting current first. Any cross-system write establishes a version
// boundary so external contributions stay independently auditable; owner
// writes snapshot only once the debounce window since the last
// modification has elapsed.
func (v *Versioner) ShouldSnapshot(current *plan.Record, writerID string) bool {
	if writerID != current.OwnerID {
		return true
	}
	return v.now().Sub(current.Modified) >= v.debounce
}

// Snapshot persists an immutable copy of current, keyed by the state's own
// modification timestamp. A store failure here is fatal to the overall
// write: the caller must abort before mutating the authoritative record.
func (v *Versioner) Snapshot(ctx context.Context, current *plan.Record) (storage.VersionRef, error) {
	selector := storage.VersionTimestamp(current.Modified)

	if err := v.store.Put(ctx, current.ID, selector, current); err != nil {
		return storage.VersionRef{}, fmt.Errorf("snapshot write failed for %s: %w", current.ID, err)
	}

	if v.archive != nil {
		data, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return storage.VersionRef{}, fmt.Errorf("snapshot serialization failed for %s: %w", current.ID, err)
		}
		key := path.Join(current.ID, selector+".json")
		if err := v.archive.Put(ctx, key, data); err != nil {
			return storage.VersionRef{}, fmt.Errorf("snapshot archive failed for %s: %w", current.ID, err)
		}
	}

	slog.Debug("Snapshot recorded", "dmp_id", current.ID, "version", selector)
	return storage.VersionRef{Timestamp: current.Modified.UTC(), Locator: selector}, nil
}

// ListVersions returns the record's snapshot refs ascending by timestamp.
func (v *Versioner) ListVersions(ctx context.Context, id string) ([]storage.VersionRef, error) {
	return v.store.ListVersions(ctx, id)
}
