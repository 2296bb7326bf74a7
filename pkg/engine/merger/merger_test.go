package merger

import (
	"testing"
	"time"

	"github.com/dmphub/dmpsync/pkg/plan"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedMerger() *Merger {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func baseRecord() *plan.Record {
	return &plan.Record{
		ID:          "doi.org/10.48321/D1BASE01",
		OwnerID:     "provenance-01",
		Title:       "Coastal Erosion Monitoring Plan",
		Description: "Five-year sensor deployment along the Gulf coast.",
		Keywords:    []string{"erosion", "coastal"},
		Modified:    fixedNow.Add(-24 * time.Hour),
	}
}

func TestReconcile_OwnerReplacesOwnedFields(t *testing.T) {
	current := baseRecord()
	proposed := baseRecord()
	proposed.Title = "Coastal Erosion Monitoring Plan v2"
	proposed.Keywords = []string{"erosion"}

	result := fixedMerger().Reconcile("provenance-01", "provenance-01", current, proposed)

	if result.Title != "Coastal Erosion Monitoring Plan v2" {
		t.Errorf("Expected owner write to replace title, got %q", result.Title)
	}
	if len(result.Keywords) != 1 {
		t.Errorf("Expected owner write to replace keywords, got %v", result.Keywords)
	}
	if result.UpdaterID != "provenance-01" {
		t.Errorf("Expected updater stamp, got %q", result.UpdaterID)
	}
	if !result.Modified.Equal(fixedNow) {
		t.Errorf("Expected modified %s, got %s", fixedNow, result.Modified)
	}
}

func TestReconcile_NonOwnerCannotTouchOwnedFields(t *testing.T) {
	current := baseRecord()
	proposed := baseRecord()
	proposed.Title = "Hijacked Title"
	proposed.Description = "Hijacked description."
	proposed.Keywords = []string{"malware"}

	result := fixedMerger().Reconcile("provenance-01", "funder-nsf", current, proposed)

	if result.Title != current.Title {
		t.Errorf("Expected non-owner title change to be discarded, got %q", result.Title)
	}
	if result.Description != current.Description {
		t.Errorf("Expected non-owner description change to be discarded, got %q", result.Description)
	}
	if len(result.Keywords) != 2 {
		t.Errorf("Expected non-owner keyword change to be discarded, got %v", result.Keywords)
	}
	if result.UpdaterID != "funder-nsf" {
		t.Errorf("Expected updater stamp even for splice-only writes, got %q", result.UpdaterID)
	}
}

func TestReconcile_InputsNotMutated(t *testing.T) {
	current := baseRecord()
	current.Funding = []plan.FundingEntry{{FunderName: "NSF", Status: plan.FundingPlanned}}
	proposed := baseRecord()
	proposed.Funding = []plan.FundingEntry{{FunderName: "NSF", Status: plan.FundingApplied}}

	fixedMerger().Reconcile("provenance-01", "provenance-01", current, proposed)

	if current.Funding[0].Status != plan.FundingPlanned {
		t.Error("Reconcile mutated the current record")
	}
	if proposed.Funding[0].Status != plan.FundingApplied {
		t.Error("Reconcile mutated the proposed record")
	}
}

func TestSpliceFunding_TerminalEntryFrozen(t *testing.T) {
	// 1. The writer already holds a granted entry for NSF, grant 123.
	granted := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	current := []plan.FundingEntry{{
		FunderName:   "National Science Foundation",
		FunderID:     "https://doi.org/10.13039/100000001",
		Status:       plan.FundingGranted,
		GrantID:      &plan.GrantID{Identifier: "award/123", CreatedAt: granted},
		ProvenanceID: "funder-nsf",
	}}

	// 2. The same writer proposes a new grant 999 for the same funder.
	proposed := []plan.FundingEntry{{
		FunderName: "National Science Foundation",
		FunderID:   "https://doi.org/10.13039/100000001",
		Status:     plan.FundingGranted,
		GrantID:    &plan.GrantID{Identifier: "award/999"},
	}}

	result := spliceFunding("provenance-01", "funder-nsf", current, proposed, fixedNow)

	// 3. The terminal entry survives untouched and the new grant lands
	//    as a second entry for the same funder.
	if len(result) != 2 {
		t.Fatalf("Expected 2 entries (frozen + appended), got %d", len(result))
	}
	if result[0].GrantID.Identifier != "award/123" || !result[0].GrantID.CreatedAt.Equal(granted) {
		t.Errorf("Terminal entry was mutated: %+v", result[0])
	}
	if result[1].GrantID.Identifier != "award/999" {
		t.Errorf("Expected appended grant 999, got %+v", result[1])
	}
	if !result[1].GrantID.CreatedAt.Equal(fixedNow) {
		t.Errorf("Expected new grant id stamped with write time, got %s", result[1].GrantID.CreatedAt)
	}
	if result[1].ProvenanceID != "funder-nsf" {
		t.Errorf("Expected writer tag on appended entry, got %q", result[1].ProvenanceID)
	}
}

func TestSpliceFunding_NonTerminalUpdatedInPlace(t *testing.T) {
	current := []plan.FundingEntry{{
		FunderName:   "NSF",
		Status:       plan.FundingPlanned,
		ProvenanceID: "funder-nsf",
	}}
	proposed := []plan.FundingEntry{{
		FunderName: "NSF",
		Status:     plan.FundingApplied,
	}}

	result := spliceFunding("provenance-01", "funder-nsf", current, proposed, fixedNow)

	if len(result) != 1 {
		t.Fatalf("Expected in-place update, got %d entries", len(result))
	}
	if result[0].Status != plan.FundingApplied {
		t.Errorf("Expected status applied, got %s", result[0].Status)
	}
}

func TestSpliceFunding_GrantCreatedAtPreservedOnSameIdentifier(t *testing.T) {
	stamped := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	current := []plan.FundingEntry{{
		FunderName:   "NSF",
		Status:       plan.FundingApplied,
		GrantID:      &plan.GrantID{Identifier: "award/123", CreatedAt: stamped},
		ProvenanceID: "funder-nsf",
	}}
	proposed := []plan.FundingEntry{{
		FunderName: "NSF",
		Status:     plan.FundingApplied,
		GrantID:    &plan.GrantID{Identifier: "AWARD/123"},
	}}

	result := spliceFunding("provenance-01", "funder-nsf", current, proposed, fixedNow)

	if !result[0].GrantID.CreatedAt.Equal(stamped) {
		t.Errorf("Expected original grant stamp preserved, got %s", result[0].GrantID.CreatedAt)
	}
}

func TestSpliceFunding_OtherProvenanceUntouched(t *testing.T) {
	current := []plan.FundingEntry{
		{FunderName: "NSF", Status: plan.FundingApplied, ProvenanceID: "funder-nsf"},
		{FunderName: "NIH", Status: plan.FundingPlanned, ProvenanceID: "funder-nih"},
	}
	proposed := []plan.FundingEntry{
		{FunderName: "NIH", Status: plan.FundingGranted},
	}

	result := spliceFunding("provenance-01", "funder-nsf", current, proposed, fixedNow)

	// The NIH entry belongs to another provenance. The writer's proposal
	// for NIH lands as its own tagged entry instead of touching it.
	var nih []plan.FundingEntry
	for _, e := range result {
		if e.FunderKey() == "nih" {
			nih = append(nih, e)
		}
	}
	if len(nih) != 2 {
		t.Fatalf("Expected NIH to appear twice (theirs + writer's), got %d", len(nih))
	}
	for _, e := range nih {
		if e.ProvenanceID == "funder-nih" && e.Status != plan.FundingPlanned {
			t.Errorf("Another provenance's entry was mutated: %+v", e)
		}
		if e.ProvenanceID == "funder-nsf" && e.Status != plan.FundingGranted {
			t.Errorf("Writer's own NIH assertion missing: %+v", e)
		}
	}
}

func TestSpliceFunding_OwnerDropsUnproposedEntries(t *testing.T) {
	current := []plan.FundingEntry{
		{FunderName: "NSF", Status: plan.FundingPlanned},
		{FunderName: "DOE", Status: plan.FundingPlanned},
		{FunderName: "Mellon", Status: plan.FundingRejected},
	}
	proposed := []plan.FundingEntry{
		{FunderName: "NSF", Status: plan.FundingApplied},
	}

	result := spliceFunding("provenance-01", "provenance-01", current, proposed, fixedNow)

	// DOE was dropped, the rejected Mellon entry is history and stays.
	if len(result) != 2 {
		t.Fatalf("Expected NSF + frozen Mellon, got %+v", result)
	}
	for _, e := range result {
		if e.FunderKey() == "doe" {
			t.Error("Owner-dropped entry survived the splice")
		}
	}
}

func TestSpliceFunding_NonOwnerIsUpsertOnly(t *testing.T) {
	current := []plan.FundingEntry{
		{FunderName: "NSF", Status: plan.FundingPlanned, ProvenanceID: "funder-nsf"},
		{FunderName: "DOE", Status: plan.FundingPlanned, ProvenanceID: "funder-nsf"},
	}
	proposed := []plan.FundingEntry{
		{FunderName: "NSF", Status: plan.FundingApplied},
	}

	result := spliceFunding("provenance-01", "funder-nsf", current, proposed, fixedNow)

	if len(result) != 2 {
		t.Fatalf("Expected non-owner write to keep unproposed entries, got %+v", result)
	}
}

func TestSpliceFunding_NoSignalEntriesIgnored(t *testing.T) {
	proposed := []plan.FundingEntry{
		{FunderName: "NSF"}, // no status, no grant id
	}

	result := spliceFunding("provenance-01", "funder-nsf", nil, proposed, fixedNow)

	if len(result) != 0 {
		t.Errorf("Expected signal-free entry to be ignored, got %+v", result)
	}
}

func TestSpliceRelated_WriterScopeReplaced(t *testing.T) {
	current := []plan.RelatedIdentifier{
		{Identifier: "doi.org/10.1/old", Descriptor: "references", ProvenanceID: "harvester"},
		{Identifier: "doi.org/10.1/owner", Descriptor: "references"},
	}
	proposed := []plan.RelatedIdentifier{
		{Identifier: "doi.org/10.1/new", Descriptor: "references"},
	}

	result := spliceRelated("provenance-01", "harvester", current, proposed)

	if len(result) != 2 {
		t.Fatalf("Expected owner entry + writer's new entry, got %+v", result)
	}
	if result[0].Identifier != "doi.org/10.1/owner" || result[0].ProvenanceID != "" {
		t.Errorf("Owner entry disturbed: %+v", result[0])
	}
	if result[1].Identifier != "doi.org/10.1/new" || result[1].ProvenanceID != "harvester" {
		t.Errorf("Expected re-tagged replacement, got %+v", result[1])
	}
}

func TestSpliceRelated_EchoOfRetainedEntrySkipped(t *testing.T) {
	current := []plan.RelatedIdentifier{
		{Identifier: "doi.org/10.1/owner", Descriptor: "references"},
	}
	proposed := []plan.RelatedIdentifier{
		{Identifier: "DOI.ORG/10.1/OWNER", Descriptor: "references"},
	}

	result := spliceRelated("provenance-01", "harvester", current, proposed)

	if len(result) != 1 {
		t.Fatalf("Expected echo to be dropped, got %+v", result)
	}
	if result[0].ProvenanceID != "" {
		t.Errorf("Owner entry picked up a writer tag: %+v", result[0])
	}
}

func TestSpliceRelated_OwnerWriteUntagged(t *testing.T) {
	proposed := []plan.RelatedIdentifier{
		{Identifier: "doi.org/10.1/dataset", Descriptor: "documents"},
	}

	result := spliceRelated("provenance-01", "provenance-01", nil, proposed)

	if len(result) != 1 || result[0].ProvenanceID != "" {
		t.Errorf("Owner contributions must stay untagged, got %+v", result)
	}
}
