// Package storage provides the persistence backends for DMP records and
// their version snapshots.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// Version selectors. Historical versions use the snapshot timestamp in
// RFC3339 form.
const (
	VersionLatest    = "latest"
	VersionTombstone = "tombstone"
)

// ErrNotFound indicates no record exists for the identifier and version
// selector.
var ErrNotFound = errors.New("record not found")

// VersionRef locates one historical snapshot of a record.
type VersionRef struct {
	Timestamp time.Time `json:"timestamp"`
	Locator   string    `json:"locator"`
}

// RecordStore is the single source of truth for record state. Keys are
// two-part: the record identifier plus a version selector distinguishing
// "latest" from a timestamped snapshot or the tombstone marker.
type RecordStore interface {
	Get(ctx context.Context, id, version string) (*plan.Record, error)
	Put(ctx context.Context, id, version string, rec *plan.Record) error
	Exists(ctx context.Context, id, version string) (bool, error)

	// ListVersions returns the record's snapshot refs ascending by
	// timestamp. Used to build externally addressable historical links,
	// never for merge decisions.
	ListVersions(ctx context.Context, id string) ([]VersionRef, error)
}

// BlobStore is the abstract archive interface for snapshot mirrors.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// VersionTimestamp formats a snapshot time as a version selector. Full
// precision: states modified within the same second must key distinct
// snapshots.
func VersionTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
