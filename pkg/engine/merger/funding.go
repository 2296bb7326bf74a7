package merger

import (
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// spliceFunding reconciles the proposed funding delta against the current
// collection, keyed by funder identity.
//
// Matching is confined to the writer's own scope. A non-terminal match is
// updated in place; a terminal match (granted/rejected) is never mutated,
// the delta is appended as a new entry so full history per funder is
// preserved. Entries belonging to other provenances pass through
// untouched. An owner write replaces the owner's non-terminal entries
// wholesale, so ones it no longer proposes are dropped; a non-owner write
// is upsert-only.
func spliceFunding(owner, writer string, current, proposed []plan.FundingEntry, now time.Time) []plan.FundingEntry {
	delta := fundingDelta(owner, writer, proposed)

	deltaKeys := make(map[string]bool, len(delta))
	for _, d := range delta {
		deltaKeys[d.FunderKey()] = true
	}

	var result []plan.FundingEntry
	for _, e := range current {
		switch {
		case !inWriterScope(e.ProvenanceID, owner, writer):
			result = append(result, e)
		case e.Status.Terminal():
			// Terminal entries are frozen history.
			result = append(result, e)
		case deltaKeys[e.FunderKey()]:
			result = append(result, e)
		case writer != owner:
			result = append(result, e)
		}
		// Owner-scope non-terminal entries absent from the delta fall
		// through: the owner stopped proposing them.
	}

	tag := tagFor(owner, writer)
	for _, d := range delta {
		idx := matchIndex(result, d.FunderKey(), owner, writer)
		if idx >= 0 && !result[idx].Status.Terminal() {
			updateEntry(&result[idx], d, tag, now)
			continue
		}
		result = append(result, newEntry(d, tag, now))
	}
	return result
}

// fundingDelta extracts the writer's actionable entries from the proposed
// collection. Entries carrying a different provenance tag are not the
// writer's to assert; entries with neither a status nor a grant id carry
// no signal to act on.
func fundingDelta(owner, writer string, proposed []plan.FundingEntry) []plan.FundingEntry {
	var delta []plan.FundingEntry
	for _, f := range proposed {
		if f.ProvenanceID != "" && !inWriterScope(f.ProvenanceID, owner, writer) {
			continue
		}
		if f.Status == "" && f.GrantID == nil {
			continue
		}
		delta = append(delta, f)
	}
	return delta
}

// matchIndex finds the writer-scope entry for a funder key, preferring a
// non-terminal entry when both exist.
func matchIndex(entries []plan.FundingEntry, key, owner, writer string) int {
	found := -1
	for i, e := range entries {
		if e.FunderKey() != key || !inWriterScope(e.ProvenanceID, owner, writer) {
			continue
		}
		if !e.Status.Terminal() {
			return i
		}
		found = i
	}
	return found
}

func updateEntry(e *plan.FundingEntry, d plan.FundingEntry, tag string, now time.Time) {
	if d.Status != "" {
		e.Status = d.Status
	}
	if d.GrantID != nil {
		g := *d.GrantID
		if e.GrantID != nil && plan.SameIdentifier(e.GrantID.Identifier, g.Identifier) {
			g.CreatedAt = e.GrantID.CreatedAt
		} else {
			// Newly set grant ids are stamped with their arrival time.
			g.CreatedAt = now
		}
		e.GrantID = &g
	}
	if d.OpportunityID != "" {
		e.OpportunityID = d.OpportunityID
	}
	if d.FunderROR != "" {
		e.FunderROR = d.FunderROR
	}
	e.ProvenanceID = tag
}

func newEntry(d plan.FundingEntry, tag string, now time.Time) plan.FundingEntry {
	e := d
	e.ProvenanceID = tag
	if d.GrantID != nil {
		g := *d.GrantID
		g.CreatedAt = now
		e.GrantID = &g
	}
	return e
}
