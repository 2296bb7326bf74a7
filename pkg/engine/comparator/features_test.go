package comparator

import (
	"testing"

	"github.com/dmphub/dmpsync/pkg/plan"
)

func TestFlipName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Rivera, Ana", "ana rivera"},
		{"Ana Rivera", "ana rivera"},
		{"  Chen,  Wei ", "wei chen"},
		{"mononym", "mononym"},
	}
	for _, tc := range cases {
		if got := FlipName(tc.in); got != tc.want {
			t.Errorf("FlipName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("The Analysis of Sediment, in the Gulf!")
	want := "analysis sediment gulf"
	if got != want {
		t.Errorf("NormalizeText = %q, want %q", got, want)
	}
}

func TestFunderIDForms(t *testing.T) {
	forms := FunderIDForms("https://doi.org/10.13039/100000001")
	if len(forms) != 2 {
		t.Fatalf("Expected DOI and bare registry form, got %v", forms)
	}
	if forms[0] != "10.13039/100000001" || forms[1] != "100000001" {
		t.Errorf("Unexpected forms: %v", forms)
	}

	if forms := FunderIDForms("https://ror.org/021nxhr62"); len(forms) != 1 || forms[0] != "021nxhr62" {
		t.Errorf("Expected single bare ROR form, got %v", forms)
	}

	if forms := FunderIDForms(""); forms != nil {
		t.Errorf("Expected nil for empty id, got %v", forms)
	}
}

func TestBuildFeatures_NormalizesIdentifiers(t *testing.T) {
	rec := &plan.Record{
		Title: "Example",
		Contact: &plan.Contributor{
			Name: "Rivera, Ana",
			ID:   "https://orcid.org/0000-0001-2345-6789",
		},
		Funding: []plan.FundingEntry{{
			FunderName: "NSF",
			GrantID:    &plan.GrantID{Identifier: "https://dx.doi.org/10.1/AWARD-123"},
		}},
	}

	f := BuildFeatures(rec)

	if len(f.GrantIDs) != 1 || f.GrantIDs[0] != "10.1/award-123" {
		t.Errorf("Expected normalized grant id, got %v", f.GrantIDs)
	}
	if len(f.People) != 1 || f.People[0].ID != "0000-0001-2345-6789" {
		t.Errorf("Expected normalized ORCID, got %+v", f.People)
	}
	if f.People[0].LastName != "rivera" {
		t.Errorf("Expected flipped last name, got %q", f.People[0].LastName)
	}
}
