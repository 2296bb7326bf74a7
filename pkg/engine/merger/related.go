package merger

import (
	"github.com/dmphub/dmpsync/pkg/plan"
)

// spliceRelated reconciles related-identifier links. The writer's own
// previously tagged entries are dropped and replaced by its delta, each
// re-tagged with the writer's provenance id. Entries tagged with any other
// provenance, and untagged owner entries when the writer is not the owner,
// are retained unchanged.
func spliceRelated(owner, writer string, current, proposed []plan.RelatedIdentifier) []plan.RelatedIdentifier {
	var result []plan.RelatedIdentifier
	for _, rel := range current {
		if inWriterScope(rel.ProvenanceID, owner, writer) {
			continue
		}
		result = append(result, rel)
	}

	tag := tagFor(owner, writer)
	for _, rel := range proposed {
		if rel.ProvenanceID != "" && !inWriterScope(rel.ProvenanceID, owner, writer) {
			// Another provenance's entry echoed back in the proposal;
			// the retained copy above is authoritative.
			continue
		}
		if containsIdentifier(result, rel.Identifier) {
			// Echo of a retained entry. Re-asserting it under the
			// writer's tag would duplicate the link.
			continue
		}
		rel.ProvenanceID = tag
		result = append(result, rel)
	}
	return result
}

func containsIdentifier(entries []plan.RelatedIdentifier, id string) bool {
	for _, e := range entries {
		if plan.SameIdentifier(e.Identifier, id) {
			return true
		}
	}
	return false
}
