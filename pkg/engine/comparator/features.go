// Package comparator scores whether an externally harvested work
// plausibly belongs to a DMP record. Feature extraction normalizes the
// record once; scoring is a bounded additive heuristic over that set.
package comparator

import (
	"net/url"
	"strings"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// Person is a normalized view of a record contributor.
type Person struct {
	Name          string // "first last", lowercased
	LastName      string
	ID            string // e.g. ORCID, normalized
	Affiliation   string
	AffiliationID string
}

// FeatureSet is the normalized match surface extracted from one record.
type FeatureSet struct {
	Title    string
	Abstract string
	Keywords []string
	People   []Person

	FunderNames    []string
	FunderIDs      []string
	GrantIDs       []string
	OpportunityIDs []string

	RepositoryIDs []string
}

// stopWords are dropped from titles and abstracts before comparison.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "but": true,
	"by": true, "for": true, "in": true, "into": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true,
	"to": true, "with": true,
}

// BuildFeatures extracts the normalized feature set from a record.
func BuildFeatures(rec *plan.Record) FeatureSet {
	f := FeatureSet{
		Title:    NormalizeText(rec.Title),
		Abstract: NormalizeText(rec.Description),
	}

	for _, kw := range rec.Keywords {
		if n := normalizeToken(kw); n != "" {
			f.Keywords = append(f.Keywords, n)
		}
	}

	people := rec.Contributors
	if rec.Contact != nil {
		people = append(people, *rec.Contact)
	}
	for _, c := range people {
		f.People = append(f.People, normalizePerson(c))
	}

	for _, fund := range rec.Funding {
		if fund.FunderName != "" {
			f.FunderNames = append(f.FunderNames, normalizeToken(fund.FunderName))
		}
		f.FunderIDs = append(f.FunderIDs, FunderIDForms(fund.FunderID)...)
		f.FunderIDs = append(f.FunderIDs, FunderIDForms(fund.FunderROR)...)
		if fund.GrantID != nil {
			if n := normalizeIdentifier(fund.GrantID.Identifier); n != "" {
				f.GrantIDs = append(f.GrantIDs, n)
			}
		}
		if fund.OpportunityID != "" {
			f.OpportunityIDs = append(f.OpportunityIDs, normalizeToken(fund.OpportunityID))
		}
	}

	for _, repo := range rec.Repositories {
		f.RepositoryIDs = append(f.RepositoryIDs, repositoryIDs(repo)...)
	}

	return f
}

// normalizePerson reverses "last, first" names and normalizes the ids.
func normalizePerson(c plan.Contributor) Person {
	name := FlipName(c.Name)
	p := Person{
		Name:          name,
		ID:            normalizeIdentifier(c.ID),
		Affiliation:   normalizeToken(c.Affiliation),
		AffiliationID: normalizeIdentifier(c.AffiliationID),
	}
	if parts := strings.Fields(name); len(parts) > 0 {
		p.LastName = parts[len(parts)-1]
	}
	return p
}

// FlipName turns "last, first" into "first last", lowercased. Names
// already in natural order pass through.
func FlipName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if last, first, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(first) + " " + strings.TrimSpace(last)
	}
	return name
}

// NormalizeText lowercases, trims, and drops common stop-words.
func NormalizeText(s string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(strings.TrimSpace(s))) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if w == "" || stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeIdentifier strips URL hulls from an identifier so the bare form
// compares across sources.
func normalizeIdentifier(s string) string {
	s = normalizeToken(s)
	for _, prefix := range []string{
		"https://", "http://",
		"dx.doi.org/", "doi.org/", "www.doi.org/",
		"api.crossref.org/funders/",
		"orcid.org/", "ror.org/",
	} {
		s = strings.TrimPrefix(s, prefix)
	}
	return s
}

// FunderIDForms expands a funder identifier into the comparable forms of
// its own and companion registry schemes. A Crossref funder DOI
// (10.13039/...) also contributes its bare registry suffix, so an id from
// either scheme matches a harvested source using the other.
func FunderIDForms(id string) []string {
	bare := normalizeIdentifier(id)
	if bare == "" {
		return nil
	}
	forms := []string{bare}
	if suffix, ok := strings.CutPrefix(bare, "10.13039/"); ok && suffix != "" {
		forms = append(forms, suffix)
	}
	return forms
}

// repositoryIDs collects the comparable identifiers of one repository:
// its registry id, its normalized name, and its URL host.
func repositoryIDs(r plan.Repository) []string {
	var ids []string
	if r.ID != "" {
		ids = append(ids, normalizeIdentifier(r.ID))
	}
	if r.Name != "" {
		ids = append(ids, normalizeToken(r.Name))
	}
	if r.URL != "" {
		if u, err := url.Parse(r.URL); err == nil && u.Host != "" {
			ids = append(ids, strings.ToLower(u.Host))
		}
	}
	return ids
}
