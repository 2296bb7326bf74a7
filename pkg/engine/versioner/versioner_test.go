package versioner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
	"github.com/dmphub/dmpsync/pkg/storage"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(modified time.Time) *plan.Record {
	return &plan.Record{
		ID:       "doi.org/10.48321/D1VERS01",
		OwnerID:  "provenance-01",
		Title:    "Versioned Plan",
		Modified: modified,
	}
}

func TestShouldSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		writer   string
		modified time.Time
		want     bool
	}{
		{
			name:     "non-owner write always snapshots",
			writer:   "funder-nsf",
			modified: fixedNow.Add(-time.Minute),
			want:     true,
		},
		{
			name:     "owner write inside debounce collapses",
			writer:   "provenance-01",
			modified: fixedNow.Add(-30 * time.Minute),
			want:     false,
		},
		{
			name:     "owner write at the window boundary snapshots",
			writer:   "provenance-01",
			modified: fixedNow.Add(-time.Hour),
			want:     true,
		},
		{
			name:     "owner write past the window snapshots",
			writer:   "provenance-01",
			modified: fixedNow.Add(-2 * time.Hour),
			want:     true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New(storage.NewMemoryStore(), WithClock(func() time.Time { return fixedNow }))
			if got := v.ShouldSnapshot(record(tc.modified), tc.writer); got != tc.want {
				t.Errorf("ShouldSnapshot = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSnapshot_KeyedByModificationTime(t *testing.T) {
	store := storage.NewMemoryStore()
	v := New(store, WithClock(func() time.Time { return fixedNow }))

	modified := fixedNow.Add(-2 * time.Hour)
	ref, err := v.Snapshot(context.Background(), record(modified))
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if ref.Locator != storage.VersionTimestamp(modified) {
		t.Errorf("Expected selector from the state's own timestamp, got %s", ref.Locator)
	}

	got, err := store.Get(context.Background(), "doi.org/10.48321/D1VERS01", ref.Locator)
	if err != nil {
		t.Fatalf("Snapshot not readable: %v", err)
	}
	if got.Title != "Versioned Plan" {
		t.Errorf("Snapshot content mismatch: %q", got.Title)
	}
}

func TestSnapshot_SameSecondStatesStayDistinct(t *testing.T) {
	store := storage.NewMemoryStore()
	v := New(store)

	// 1. Two states modified 500ms apart, inside one wall-clock second.
	first := record(fixedNow.Add(200 * time.Millisecond))
	second := record(fixedNow.Add(700 * time.Millisecond))
	second.Title = "Versioned Plan, revised"

	ref1, err := v.Snapshot(context.Background(), first)
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := v.Snapshot(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}
	if ref1.Locator == ref2.Locator {
		t.Fatalf("Sub-second states collided on selector %s", ref1.Locator)
	}

	// 2. Both snapshots survive, ascending, with their own content.
	refs, err := v.ListVersions(context.Background(), first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(refs))
	}
	if !refs[0].Timestamp.Before(refs[1].Timestamp) {
		t.Errorf("Snapshots out of order: %v then %v", refs[0].Timestamp, refs[1].Timestamp)
	}

	got, err := store.Get(context.Background(), first.ID, ref1.Locator)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Versioned Plan" {
		t.Errorf("Earlier snapshot was overwritten: %q", got.Title)
	}
}

func TestSnapshot_IdempotentForSameState(t *testing.T) {
	store := storage.NewMemoryStore()
	v := New(store)

	rec := record(fixedNow.Add(-2 * time.Hour))
	if _, err := v.Snapshot(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Snapshot(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if n := store.VersionCount(rec.ID); n != 1 {
		t.Errorf("Re-snapshotting the same state must not add versions, got %d", n)
	}
}

func TestSnapshot_StoreFailureIsFatal(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailPut = errors.New("table throttled")
	v := New(store)

	if _, err := v.Snapshot(context.Background(), record(fixedNow)); err == nil {
		t.Error("Expected snapshot failure to propagate")
	}
}

func TestSnapshot_ArchiveMirror(t *testing.T) {
	store := storage.NewMemoryStore()
	archive := storage.NewLocalBlobStore(t.TempDir())
	v := New(store, WithArchive(archive))

	rec := record(fixedNow.Add(-2 * time.Hour))
	ref, err := v.Snapshot(context.Background(), rec)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	data, err := archive.Get(context.Background(), rec.ID+"/"+ref.Locator+".json")
	if err != nil {
		t.Fatalf("Archive copy missing: %v", err)
	}
	if len(data) == 0 {
		t.Error("Archive copy is empty")
	}
}

func TestWithDebounce_RejectsNonPositive(t *testing.T) {
	v := New(storage.NewMemoryStore(), WithDebounce(0), WithClock(func() time.Time { return fixedNow }))

	// The default window stays in effect.
	if v.ShouldSnapshot(record(fixedNow.Add(-30*time.Minute)), "provenance-01") {
		t.Error("Zero debounce must not disable the default window")
	}
}
