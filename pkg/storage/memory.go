package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// MemoryStore implements RecordStore in memory. Used by tests and mock
// mode; safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]*plan.Record

	// FailPut, when set, is returned by every Put. Lets tests exercise
	// the fatal snapshot/write paths.
	FailPut error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]map[string]*plan.Record)}
}

func (s *MemoryStore) Get(ctx context.Context, id, version string) (*plan.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := versions[version]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, id, version string, rec *plan.Record) error {
	if s.FailPut != nil {
		return s.FailPut
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items[id] == nil {
		s.items[id] = make(map[string]*plan.Record)
	}
	s.items[id][version] = rec.Clone()
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, id, version string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.items[id]
	if !ok {
		return false, nil
	}
	_, ok = versions[version]
	return ok, nil
}

func (s *MemoryStore) ListVersions(ctx context.Context, id string) ([]VersionRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []VersionRef
	for version := range s.items[id] {
		if version == VersionLatest || version == VersionTombstone {
			continue
		}
		ts, err := time.Parse(time.RFC3339, version)
		if err != nil {
			continue
		}
		refs = append(refs, VersionRef{Timestamp: ts, Locator: version})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Timestamp.Before(refs[j].Timestamp) })
	return refs, nil
}

// VersionCount reports how many snapshots exist for id. Test helper.
func (s *MemoryStore) VersionCount(id string) int {
	refs, _ := s.ListVersions(context.Background(), id)
	return len(refs)
}
