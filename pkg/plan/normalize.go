package plan

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// normalizeKey lowercases and trims an identifier for comparison. All
// identifier matching across the engine goes through this.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameIdentifier reports whether two identifiers refer to the same thing
// (case-insensitive, trimmed).
func SameIdentifier(a, b string) bool {
	return normalizeKey(a) == normalizeKey(b) && normalizeKey(a) != ""
}

// HasRelatedIdentifier reports whether the record's authoritative
// related-identifier collection already names id.
func (r *Record) HasRelatedIdentifier(id string) bool {
	for _, rel := range r.RelatedIdentifiers {
		if SameIdentifier(rel.Identifier, id) {
			return true
		}
	}
	return false
}

// HasGrantID reports whether the record's authoritative funding entries
// already carry the grant identifier.
func (r *Record) HasGrantID(id string) bool {
	for _, f := range r.Funding {
		if f.GrantID != nil && SameIdentifier(f.GrantID.Identifier, id) {
			return true
		}
	}
	return false
}

// canonical strips volatile state and sorts the collections so two records
// can be compared for semantic equality.
func canonical(r *Record) *Record {
	c := r.Clone()
	c.Modified = time.Time{}
	c.UpdaterID = ""
	c.Modifications = nil
	c.Candidates = nil

	sort.Slice(c.Funding, func(i, j int) bool {
		if c.Funding[i].FunderKey() != c.Funding[j].FunderKey() {
			return c.Funding[i].FunderKey() < c.Funding[j].FunderKey()
		}
		return c.Funding[i].ProvenanceID < c.Funding[j].ProvenanceID
	})
	sort.Slice(c.RelatedIdentifiers, func(i, j int) bool {
		return normalizeKey(c.RelatedIdentifiers[i].Identifier) <
			normalizeKey(c.RelatedIdentifiers[j].Identifier)
	})
	sort.Strings(c.Keywords)
	for i := range c.Funding {
		if c.Funding[i].GrantID != nil {
			g := *c.Funding[i].GrantID
			g.CreatedAt = time.Time{}
			c.Funding[i].GrantID = &g
		}
	}
	return c
}

// Equivalent reports whether two record states are semantically identical
// after normalization. Callers treat an equivalent write as "no changes".
func Equivalent(a, b *Record) bool {
	ja, err := json.Marshal(canonical(a))
	if err != nil {
		return false
	}
	jb, err := json.Marshal(canonical(b))
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}

// Clone returns a deep copy of the record via JSON round-trip. Record
// states are small; simplicity wins over hand-written copying here.
func (r *Record) Clone() *Record {
	data, err := json.Marshal(r)
	if err != nil {
		// Record contains only marshalable types.
		panic(err)
	}
	var c Record
	if err := json.Unmarshal(data, &c); err != nil {
		panic(err)
	}
	return &c
}
