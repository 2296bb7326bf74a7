// Package plan defines the canonical data model for Data Management Plan
// (DMP) records and the boundary types shared by the engine components.
package plan

import (
	"time"
)

// FundingStatus tracks the lifecycle of a funder relationship.
type FundingStatus string

const (
	FundingPlanned  FundingStatus = "planned"
	FundingApplied  FundingStatus = "applied"
	FundingGranted  FundingStatus = "granted"
	FundingRejected FundingStatus = "rejected"
)

// Terminal reports whether the status is final. Terminal entries are
// append-only: a later update for the same funder creates a new entry.
func (s FundingStatus) Terminal() bool {
	return s == FundingGranted || s == FundingRejected
}

// GrantID identifies an awarded grant. CreatedAt is stamped when the
// identifier is first set on a record.
type GrantID struct {
	Identifier string    `json:"identifier"`
	Type       string    `json:"type,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// FundingEntry is one funder relationship on a record.
// ProvenanceID is empty only for entries the owner itself authored.
type FundingEntry struct {
	FunderName    string        `json:"name"`
	FunderID      string        `json:"funder_id,omitempty"`
	FunderROR     string        `json:"funder_ror,omitempty"`
	Status        FundingStatus `json:"funding_status,omitempty"`
	GrantID       *GrantID      `json:"grant_id,omitempty"`
	OpportunityID string        `json:"funding_opportunity_id,omitempty"`
	ProvenanceID  string        `json:"provenance,omitempty"`
}

// FunderKey returns the identity used to match funding entries across
// writes: the funder id when present, otherwise the funder name.
func (f FundingEntry) FunderKey() string {
	if f.FunderID != "" {
		return normalizeKey(f.FunderID)
	}
	return normalizeKey(f.FunderName)
}

// RelatedIdentifier links a record to an external work.
type RelatedIdentifier struct {
	Identifier   string `json:"identifier"`
	Type         string `json:"type,omitempty"`
	Descriptor   string `json:"descriptor"`
	WorkType     string `json:"work_type,omitempty"`
	Citation     string `json:"citation,omitempty"`
	ProvenanceID string `json:"provenance,omitempty"`
}

// Contributor is a person attached to a record or a harvested work.
type Contributor struct {
	Name          string `json:"name"`
	ID            string `json:"id,omitempty"`
	Affiliation   string `json:"affiliation,omitempty"`
	AffiliationID string `json:"affiliation_id,omitempty"`
	Role          string `json:"role,omitempty"`
}

// Repository describes a data repository named on a record.
type Repository struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	ID   string `json:"id,omitempty"`
}

// ModificationStatus tracks a proposed change batch through review.
type ModificationStatus string

const (
	ModificationPending  ModificationStatus = "pending"
	ModificationApproved ModificationStatus = "approved"
	ModificationRejected ModificationStatus = "rejected"
)

// Modification is one batch of machine- or peer-proposed changes awaiting a
// decision. The payload is immutable once created; only Status transitions.
type Modification struct {
	ID                 string              `json:"id"`
	ProvenanceID       string              `json:"provenance"`
	Timestamp          time.Time           `json:"timestamp"`
	Status             ModificationStatus  `json:"status"`
	Note               string              `json:"note,omitempty"`
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers,omitempty"`
	Funding            []FundingEntry      `json:"funding,omitempty"`
}

// CandidateStatus is the review state of one individually tracked work.
type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "pending"
	CandidateApproved CandidateStatus = "approved"
	CandidateRejected CandidateStatus = "rejected"
)

// TrackedCandidate is per-record scratch state for one harvested work,
// keyed by the work's identifier in Record.Candidates.
type TrackedCandidate struct {
	Citation   string          `json:"citation,omitempty"`
	Confidence string          `json:"confidence"`
	Score      int             `json:"score"`
	Notes      []string        `json:"notes,omitempty"`
	Status     CandidateStatus `json:"status"`
	Descriptor string          `json:"descriptor,omitempty"`
	WorkType   string          `json:"work_type,omitempty"`
	Source     string          `json:"source,omitempty"`
}

// Project carries the free-form project metadata block. Only the owning
// provenance may change it.
type Project struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

// Record is the canonical DMP entity. Exactly one state per identifier is
// "latest"; all other states are immutable version snapshots.
type Record struct {
	ID          string `json:"dmp_id"`
	OwnerID     string `json:"owner"`
	UpdaterID   string `json:"updater,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	Project      Project       `json:"project,omitzero"`
	Contact      *Contributor  `json:"contact,omitempty"`
	Contributors []Contributor `json:"contributors,omitempty"`
	Keywords     []string      `json:"keywords,omitempty"`
	Repositories []Repository  `json:"repositories,omitempty"`

	Funding            []FundingEntry      `json:"funding,omitempty"`
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers,omitempty"`

	Modifications []Modification              `json:"modifications,omitempty"`
	Candidates    map[string]TrackedCandidate `json:"candidates,omitempty"`
}

// TombstoneTitlePrefix marks a retired record. The content behind it is
// frozen.
const TombstoneTitlePrefix = "OBSOLETE: "

// Tombstoned reports whether the record has reached its terminal state.
func (r *Record) Tombstoned() bool {
	return len(r.Title) >= len(TombstoneTitlePrefix) &&
		r.Title[:len(TombstoneTitlePrefix)] == TombstoneTitlePrefix
}

// WorkFunding is a funding reference on a harvested work.
type WorkFunding struct {
	FunderName    string   `json:"funder_name,omitempty"`
	FunderID      string   `json:"funder_id,omitempty"`
	AwardIDs      []string `json:"award_ids,omitempty"`
	OpportunityID string   `json:"opportunity_id,omitempty"`
}

// CandidateWork is the minimal common shape supplied by harvesting
// collaborators (DataCite-style sources). The engine is agnostic to how it
// was obtained.
type CandidateWork struct {
	ID                 string        `json:"id"`
	Titles             []string      `json:"titles,omitempty"`
	Abstracts          []string      `json:"abstracts,omitempty"`
	Contributors       []Contributor `json:"contributors,omitempty"`
	Funding            []WorkFunding `json:"funding,omitempty"`
	Keywords           []string      `json:"keywords,omitempty"`
	RelatedIdentifiers []string      `json:"related_identifiers,omitempty"`
	Repository         *Repository   `json:"repository,omitempty"`
	WorkType           string        `json:"work_type,omitempty"`
	Citation           string        `json:"citation,omitempty"`
}

// Title returns the work's primary title, empty when none was supplied.
func (w *CandidateWork) Title() string {
	if len(w.Titles) == 0 {
		return ""
	}
	return w.Titles[0]
}
