// Package ledger maintains the pending-change log on a record: proposed
// modifications queued for review, and promotion of approved candidate
// works into the authoritative related-identifier collection.
package ledger

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// Ledger appends and promotes modification entries.
type Ledger struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDSource overrides modification id generation. Tests only.
func WithIDSource(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Propose builds one pending Modification from the candidate changes,
// deduplicates it against everything the record already knows, and
// appends the survivors to the record's modification log. Returns nil
// when every proposed item was already known; the record is untouched in
// that case.
func (l *Ledger) Propose(rec *plan.Record, writer string, related []plan.RelatedIdentifier, funding []plan.FundingEntry, note string) *plan.Modification {
	var keptRelated []plan.RelatedIdentifier
	for _, rel := range related {
		if l.relatedKnown(rec, rel.Identifier) {
			continue
		}
		rel.ProvenanceID = writer
		keptRelated = append(keptRelated, rel)
	}

	var keptFunding []plan.FundingEntry
	for _, f := range funding {
		if f.GrantID != nil && l.grantKnown(rec, f.GrantID.Identifier) {
			continue
		}
		f.ProvenanceID = writer
		keptFunding = append(keptFunding, f)
	}

	if len(keptRelated) == 0 && len(keptFunding) == 0 {
		slog.Debug("Modification fully deduplicated", "dmp_id", rec.ID, "provenance", writer)
		return nil
	}

	mod := plan.Modification{
		ID:                 l.newID(),
		ProvenanceID:       writer,
		Timestamp:          l.now().UTC(),
		Status:             plan.ModificationPending,
		Note:               note,
		RelatedIdentifiers: keptRelated,
		Funding:            keptFunding,
	}
	rec.Modifications = append(rec.Modifications, mod)
	return &mod
}

// relatedKnown reports whether the identifier already appears in any
// modification entry or in the authoritative related-identifier
// collection.
func (l *Ledger) relatedKnown(rec *plan.Record, id string) bool {
	if strings.TrimSpace(id) == "" {
		return true
	}
	if rec.HasRelatedIdentifier(id) {
		return true
	}
	for _, mod := range rec.Modifications {
		for _, rel := range mod.RelatedIdentifiers {
			if plan.SameIdentifier(rel.Identifier, id) {
				return true
			}
		}
	}
	return false
}

// grantKnown mirrors relatedKnown for funding grant ids.
func (l *Ledger) grantKnown(rec *plan.Record, id string) bool {
	if strings.TrimSpace(id) == "" {
		return true
	}
	if rec.HasGrantID(id) {
		return true
	}
	for _, mod := range rec.Modifications {
		for _, f := range mod.Funding {
			if f.GrantID != nil && plan.SameIdentifier(f.GrantID.Identifier, id) {
				return true
			}
		}
	}
	return false
}

// Promote folds every approved tracked candidate into the authoritative
// related-identifier collection and clears it from the tracking structure.
// Rejected candidates are dropped; pending ones stay for a future cycle.
// Promotion is idempotent: presence is re-checked before every insertion.
// Returns the number of identifiers promoted.
func (l *Ledger) Promote(rec *plan.Record) int {
	if len(rec.Candidates) == 0 {
		return 0
	}

	// Stable iteration keeps promoted ordering deterministic.
	ids := make([]string, 0, len(rec.Candidates))
	for id := range rec.Candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	promoted := 0
	for _, id := range ids {
		cand := rec.Candidates[id]
		switch cand.Status {
		case plan.CandidateApproved:
			if !rec.HasRelatedIdentifier(id) && !plan.SameIdentifier(id, rec.ID) {
				rec.RelatedIdentifiers = append(rec.RelatedIdentifiers, plan.RelatedIdentifier{
					Identifier:   id,
					Type:         "doi",
					Descriptor:   descriptorOrDefault(cand.Descriptor),
					WorkType:     cand.WorkType,
					Citation:     cand.Citation,
					ProvenanceID: cand.Source,
				})
				promoted++
			}
			delete(rec.Candidates, id)
		case plan.CandidateRejected:
			delete(rec.Candidates, id)
		}
	}
	return promoted
}

func descriptorOrDefault(d string) string {
	if d == "" {
		return "references"
	}
	return d
}
