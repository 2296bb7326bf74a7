package comparator

import (
	"fmt"
	"sort"

	"github.com/agext/levenshtein"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// Confidence tiers. Only Absolute (exact grant match) and None (zero
// score) are fixed; the intermediate tiers are band-configurable.
type Confidence string

const (
	ConfidenceAbsolute Confidence = "absolute"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
	ConfidenceNone     Confidence = "none"
)

// Band maps a minimum score to a confidence tier.
type Band struct {
	Min  int        `json:"min" yaml:"min"`
	Tier Confidence `json:"tier" yaml:"tier"`
}

// DefaultBands is the shipped tier table, highest band first. The band
// boundaries are tunable configuration, not contract.
var DefaultBands = []Band{
	{Min: 10, Tier: ConfidenceHigh},
	{Min: 4, Tier: ConfidenceMedium},
	{Min: 1, Tier: ConfidenceLow},
}

// Lexical similarity thresholds for titles and abstracts.
const (
	similarityStrong = 0.75
	similarityWeak   = 0.5
)

// Result is the outcome of scoring one candidate work against one record.
type Result struct {
	Score      int        `json:"score"`
	Confidence Confidence `json:"confidence"`
	Notes      []string   `json:"notes,omitempty"`
}

// Comparator scores candidate works against record feature sets.
type Comparator struct {
	bands []Band
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithBands overrides the confidence tier table.
func WithBands(bands []Band) Option {
	return func(c *Comparator) {
		if len(bands) > 0 {
			sorted := append([]Band(nil), bands...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })
			c.bands = sorted
		}
	}
}

func New(opts ...Option) *Comparator {
	c := &Comparator{bands: DefaultBands}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Score evaluates a candidate work against the feature set. An exact
// grant-id match short-circuits to maximum confidence; everything else is
// additive. A work with no title yields the zero-score default without
// error.
func (c *Comparator) Score(f FeatureSet, work *plan.CandidateWork) Result {
	if work == nil || work.Title() == "" {
		return Result{Confidence: ConfidenceNone}
	}

	// An exact grant match is as certain as this ever gets.
	for _, wf := range work.Funding {
		for _, award := range wf.AwardIDs {
			if containsString(f.GrantIDs, normalizeIdentifier(award)) {
				return Result{
					Score:      100,
					Confidence: ConfidenceAbsolute,
					Notes:      []string{"the grant ids match"},
				}
			}
		}
	}

	var (
		score int
		notes []string
	)

	for _, wf := range work.Funding {
		if wf.OpportunityID != "" && containsString(f.OpportunityIDs, normalizeToken(wf.OpportunityID)) {
			score += 5
			notes = append(notes, "the funding opportunity numbers match")
			break
		}
	}

	idMatches, nameMatches := c.matchContributors(f.People, work.Contributors)
	if idMatches > 0 {
		score += 2 * idMatches
		notes = append(notes, fmt.Sprintf("%d contributor ids match", idMatches))
	}
	if nameMatches > 0 {
		score += nameMatches
		notes = append(notes, fmt.Sprintf("%d contributor names and affiliations match", nameMatches))
	}

	if work.Repository != nil {
		if n := intersectCount(f.RepositoryIDs, repositoryIDs(*work.Repository)); n > 0 {
			score += n
			notes = append(notes, "the repositories match")
		}
	}

	workKeywords := make([]string, 0, len(work.Keywords))
	for _, kw := range work.Keywords {
		workKeywords = append(workKeywords, normalizeToken(kw))
	}
	if overlapsLoosely(f.Keywords, workKeywords) {
		score++
		notes = append(notes, "the keywords match")
	}

	if pts, note := similarityPoints(f.Title, NormalizeText(work.Title()), "titles"); pts > 0 {
		score += pts
		notes = append(notes, note)
	}
	if len(work.Abstracts) > 0 {
		if pts, note := similarityPoints(f.Abstract, NormalizeText(work.Abstracts[0]), "abstracts"); pts > 0 {
			score += pts
			notes = append(notes, note)
		}
	}

	return Result{
		Score:      score,
		Confidence: c.tierFor(score),
		Notes:      notes,
	}
}

// similarityPoints applies the shared lexical thresholds to one field.
func similarityPoints(a, b, label string) (int, string) {
	if a == "" || b == "" {
		return 0, ""
	}
	switch sim := levenshtein.Similarity(a, b, nil); {
	case sim >= similarityStrong:
		return 5, fmt.Sprintf("%s are similar", label)
	case sim >= similarityWeak:
		return 2, fmt.Sprintf("%s are somewhat similar", label)
	default:
		return 0, ""
	}
}

// matchContributors counts identifier matches and, separately, last-name
// plus affiliation matches between a work's contributors and the record's
// people.
func (c *Comparator) matchContributors(people []Person, contributors []plan.Contributor) (idMatches, nameMatches int) {
	for _, wc := range contributors {
		candidate := normalizePerson(wc)
		matchedID := false
		if candidate.ID != "" {
			for _, p := range people {
				if p.ID != "" && p.ID == candidate.ID {
					idMatches++
					matchedID = true
					break
				}
			}
		}
		if matchedID || candidate.LastName == "" {
			continue
		}
		for _, p := range people {
			if p.LastName != candidate.LastName {
				continue
			}
			if (candidate.Affiliation != "" && candidate.Affiliation == p.Affiliation) ||
				(candidate.AffiliationID != "" && candidate.AffiliationID == p.AffiliationID) {
				nameMatches++
				break
			}
		}
	}
	return idMatches, nameMatches
}

func (c *Comparator) tierFor(score int) Confidence {
	if score <= 0 {
		return ConfidenceNone
	}
	for _, b := range c.bands {
		if score >= b.Min {
			return b.Tier
		}
	}
	return ConfidenceNone
}
