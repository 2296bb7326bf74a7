package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// FileStore implements RecordStore on the local filesystem. One directory
// per record, one JSON document per version selector.
type FileStore struct {
	Root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

// recordDir maps an identifier to a directory name. Identifiers are
// DOI-shaped and contain slashes.
func (s *FileStore) recordDir(id string) string {
	safe := strings.ReplaceAll(id, "/", "_")
	return filepath.Join(s.Root, safe)
}

func (s *FileStore) path(id, version string) string {
	return filepath.Join(s.recordDir(id), version+".json")
}

func (s *FileStore) Get(ctx context.Context, id, version string) (*plan.Record, error) {
	data, err := os.ReadFile(s.path(id, version))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s@%s: %w", id, version, err)
	}
	var rec plan.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record %s@%s: %w", id, version, err)
	}
	return &rec, nil
}

func (s *FileStore) Put(ctx context.Context, id, version string, rec *plan.Record) error {
	dir := s.recordDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize record %s: %w", id, err)
	}
	return os.WriteFile(s.path(id, version), data, 0600)
}

func (s *FileStore) Exists(ctx context.Context, id, version string) (bool, error) {
	_, err := os.Stat(s.path(id, version))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) ListVersions(ctx context.Context, id string) ([]VersionRef, error) {
	entries, err := os.ReadDir(s.recordDir(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for %s: %w", id, err)
	}

	var refs []VersionRef
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if name == VersionLatest || name == VersionTombstone {
			continue
		}
		ts, err := time.Parse(time.RFC3339, name)
		if err != nil {
			continue
		}
		refs = append(refs, VersionRef{Timestamp: ts, Locator: name})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Timestamp.Before(refs[j].Timestamp) })
	return refs, nil
}

// LocalBlobStore implements BlobStore on the local filesystem, used as the
// snapshot archive when S3 is not configured.
type LocalBlobStore struct {
	Root string
}

func NewLocalBlobStore(root string) *LocalBlobStore {
	return &LocalBlobStore{Root: root}
}

func (s *LocalBlobStore) Put(ctx context.Context, key string, data []byte) error {
	path := filepath.Join(s.Root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (s *LocalBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, key))
}

func (s *LocalBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	root := filepath.Join(s.Root, prefix)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(s.Root, path)
			keys = append(keys, rel)
		}
		return nil
	})

	return keys, err
}
