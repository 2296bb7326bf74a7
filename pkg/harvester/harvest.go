package harvester

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dmphub/dmpsync/pkg/engine/comparator"
	"github.com/dmphub/dmpsync/pkg/engine/ledger"
	"github.com/dmphub/dmpsync/pkg/engine/policy"
	"github.com/dmphub/dmpsync/pkg/plan"
	"github.com/dmphub/dmpsync/pkg/storage"
)

// DefaultThreshold is the minimum comparison score a candidate needs to
// be tracked at all.
const DefaultThreshold = 1

// Harvester runs the match cycle: score each candidate, apply disposition
// rules, and queue survivors on the record.
type Harvester struct {
	Store      storage.RecordStore
	Comparator *comparator.Comparator
	Ledger     *ledger.Ledger
	Rules      *policy.CELEngine // optional
	Threshold  int
	Logger     *slog.Logger
}

func New(store storage.RecordStore, cmp *comparator.Comparator, led *ledger.Ledger) *Harvester {
	return &Harvester{
		Store:      store,
		Comparator: cmp,
		Ledger:     led,
		Threshold:  DefaultThreshold,
		Logger:     slog.Default(),
	}
}

// HarvestRecord pulls candidates from every registered source, scores
// them against the record, and persists the updated tracking scratch and
// modification log. Returns the number of newly tracked candidates.
// Source failures are logged and skipped; store failures are fatal.
func (h *Harvester) HarvestRecord(ctx context.Context, id string, registry *Registry) (int, error) {
	tr := otel.Tracer("dmpsync/harvester")
	ctx, span := tr.Start(ctx, "Harvester.HarvestRecord")
	span.SetAttributes(attribute.String("dmp.id", id))
	defer span.End()

	rec, err := h.Store.Get(ctx, id, storage.VersionLatest)
	if err != nil {
		return 0, err
	}
	if rec.Tombstoned() {
		return 0, nil
	}

	features := comparator.BuildFeatures(rec)

	tracked := 0
	for _, src := range registry.Sources() {
		works, err := src.FetchCandidates(ctx, rec)
		if err != nil {
			span.RecordError(err)
			h.Logger.Error("Source fetch failed", "source", src.Name(), "dmp_id", id, "error", err)
			continue
		}
		for i := range works {
			if h.considerWork(ctx, rec, features, &works[i], src.Name()) {
				tracked++
			}
		}
	}

	if tracked == 0 {
		return 0, nil
	}

	if err := h.Store.Put(ctx, id, storage.VersionLatest, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to persist harvest results: %w", err)
	}
	h.Logger.Info("Harvest cycle complete", "dmp_id", id, "tracked", tracked)
	return tracked, nil
}

// considerWork scores one candidate and queues it when it clears the
// threshold and the disposition rules. Reports whether the record
// changed.
func (h *Harvester) considerWork(ctx context.Context, rec *plan.Record, features comparator.FeatureSet, work *plan.CandidateWork, source string) bool {
	if work.ID == "" || plan.SameIdentifier(work.ID, rec.ID) {
		return false
	}
	if _, known := rec.Candidates[work.ID]; known {
		return false
	}

	result := h.Comparator.Score(features, work)
	if result.Score < h.Threshold {
		return false
	}

	status := plan.CandidatePending
	propose := true
	if h.Rules != nil {
		matches, err := h.Rules.Evaluate(ctx, policy.EvaluationContext{
			WorkID:     work.ID,
			Score:      float64(result.Score),
			Confidence: string(result.Confidence),
			Notes:      result.Notes,
			Source:     source,
		})
		if err != nil {
			h.Logger.Error("Disposition evaluation failed", "work_id", work.ID, "error", err)
		}
		switch policy.Disposition(matches) {
		case policy.ActionDiscard:
			return false
		case policy.ActionHold:
			// Tracked but kept out of the ledger until someone looks.
			propose = false
		}
	}

	if rec.Candidates == nil {
		rec.Candidates = make(map[string]plan.TrackedCandidate)
	}
	rec.Candidates[work.ID] = plan.TrackedCandidate{
		Citation:   work.Citation,
		Confidence: string(result.Confidence),
		Score:      result.Score,
		Notes:      result.Notes,
		Status:     status,
		Descriptor: "references",
		WorkType:   work.WorkType,
		Source:     source,
	}

	if propose {
		h.Ledger.Propose(rec, source, []plan.RelatedIdentifier{{
			Identifier: work.ID,
			Type:       "doi",
			Descriptor: "references",
			WorkType:   work.WorkType,
			Citation:   work.Citation,
		}}, nil, fmt.Sprintf("found by %s (score %d)", source, result.Score))
	}

	return true
}

// SetCandidateStatus records a review decision for one tracked work. The
// decision takes effect on the next owner-initiated write, when approved
// candidates are promoted.
func (h *Harvester) SetCandidateStatus(ctx context.Context, id, workID string, status plan.CandidateStatus) error {
	rec, err := h.Store.Get(ctx, id, storage.VersionLatest)
	if err != nil {
		return err
	}
	cand, ok := rec.Candidates[workID]
	if !ok {
		return fmt.Errorf("work %s is not tracked on %s: %w", workID, id, storage.ErrNotFound)
	}
	if cand.Status == status {
		return nil
	}
	cand.Status = status
	rec.Candidates[workID] = cand

	if err := h.Store.Put(ctx, id, storage.VersionLatest, rec); err != nil {
		return fmt.Errorf("failed to persist review decision: %w", err)
	}
	h.Logger.Info("Candidate reviewed", "dmp_id", id, "work_id", workID, "status", status)
	return nil
}
