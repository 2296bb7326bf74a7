// Package harvester matches harvested third-party works against records
// and queues the plausible ones for review.
package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// Source supplies candidate works for one record. Implementations wrap
// whatever transport obtained them; the engine never sees that detail.
type Source interface {
	Name() string
	FetchCandidates(ctx context.Context, rec *plan.Record) ([]plan.CandidateWork, error)
}

// Registry manages a collection of sources.
type Registry struct {
	sources []Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []Source {
	return r.sources
}

// FileSource reads candidate works from a JSON document. Used for bulk
// file imports and tests.
type FileSource struct {
	Path  string
	Label string
}

func (s *FileSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "file:" + s.Path
}

func (s *FileSource) FetchCandidates(ctx context.Context, rec *plan.Record) ([]plan.CandidateWork, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate file: %w", err)
	}
	var works []plan.CandidateWork
	if err := json.Unmarshal(data, &works); err != nil {
		return nil, fmt.Errorf("failed to parse candidate file: %w", err)
	}
	return works, nil
}

// StaticSource serves a fixed candidate list. Tests only.
type StaticSource struct {
	Label string
	Works []plan.CandidateWork
	Err   error
}

func (s *StaticSource) Name() string { return s.Label }

func (s *StaticSource) FetchCandidates(ctx context.Context, rec *plan.Record) ([]plan.CandidateWork, error) {
	return s.Works, s.Err
}
