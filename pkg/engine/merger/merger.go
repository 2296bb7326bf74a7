// Package merger reconciles a writer's proposed record state against the
// current authoritative state. Free-form fields belong to the owning
// provenance; funding and related-identifier collections are spliced
// field-by-field so no writer can clobber another's contributions.
package merger

import (
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// Merger applies the owner-aware reconciliation rules.
type Merger struct {
	now func() time.Time
}

// Option configures a Merger.
type Option func(*Merger)

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

func New(opts ...Option) *Merger {
	m := &Merger{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reconcile merges proposed into current on behalf of writer and returns
// the new authoritative state. Neither input is mutated.
//
// When the writer owns the record its free-form fields are replaced
// wholesale; otherwise any difference in them is discarded. The funding
// and related-identifier collections follow the splice rules in funding.go
// and related.go either way.
func (m *Merger) Reconcile(owner, writer string, current, proposed *plan.Record) *plan.Record {
	result := current.Clone()
	now := m.now().UTC()

	if writer == owner {
		result.Title = proposed.Title
		result.Description = proposed.Description
		result.Project = proposed.Project
		result.Contact = cloneContact(proposed.Contact)
		result.Contributors = append([]plan.Contributor(nil), proposed.Contributors...)
		result.Keywords = append([]string(nil), proposed.Keywords...)
		result.Repositories = append([]plan.Repository(nil), proposed.Repositories...)
	}

	result.Funding = spliceFunding(owner, writer, current.Funding, proposed.Funding, now)
	result.RelatedIdentifiers = spliceRelated(owner, writer, current.RelatedIdentifiers, proposed.RelatedIdentifiers)

	result.UpdaterID = writer
	result.Modified = now
	return result
}

// tagFor returns the provenance tag stamped on entries the writer
// contributes. Owner-authored entries stay untagged.
func tagFor(owner, writer string) string {
	if writer == owner {
		return ""
	}
	return writer
}

// inWriterScope reports whether an existing entry tag belongs to the
// writer: its own provenance tag, or the untagged owner scope when the
// writer is the owner.
func inWriterScope(provenanceID, owner, writer string) bool {
	if writer == owner {
		return provenanceID == "" || provenanceID == owner
	}
	return provenanceID == writer
}

func cloneContact(c *plan.Contributor) *plan.Contributor {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
