package canonical

import (
	"context"
	"time"
)

// Applier performs Stage B's apply step: upsert entities (by
// canonical_key), then tasks, then events, accumulating a temp-id ->
// stable-id map, then create relationship facts resolved through that
// map. Grounded on stele/src/scribes/canonical/mod.rs's apply_plan.
type Applier struct {
	store  Store
	branch string
	now    func() time.Time
}

// NewApplier constructs an Applier against store, writing facts to branch
// (empty defaults to "main" at the store layer).
func NewApplier(store Store, branch string) *Applier {
	return &Applier{store: store, branch: branch, now: time.Now}
}

// Apply writes plan's surviving items to the store in entity -> task ->
// event -> fact order. It never aborts partway: a failed item is counted
// as a backoff event and apply continues with the remaining items. At
// least one item must apply successfully, or Apply returns
// PlanApplyFailedError.
func (a *Applier) Apply(ctx context.Context, plan ValidatedPlan) (ApplyResult, error) {
	result := ApplyResult{EntityIDs: make(map[string]string)}

	for _, e := range plan.Entities {
		result.Attempted++
		id, err := a.store.UpsertEntity(ctx, e.CanonicalKey, e.Type, e.Name, e.Confidence, e.Provenance, e.Extra)
		if err != nil {
			result.BackoffEvents++
			continue
		}
		result.Applied++
		result.EntityIDs[e.TempID] = id
		result.EntityIDs[e.CanonicalKey] = id
	}

	for _, t := range plan.Tasks {
		result.Attempted++
		id, err := a.store.UpsertTask(ctx, t.CanonicalKey, t.Description, t.Confidence, t.Provenance)
		if err != nil {
			result.BackoffEvents++
			continue
		}
		result.Applied++
		result.EntityIDs[t.TempID] = id
		result.EntityIDs[t.CanonicalKey] = id
	}

	for _, ev := range plan.Events {
		result.Attempted++
		id, err := a.store.UpsertEvent(ctx, ev.CanonicalKey, ev.Description, ev.OccurredAt, ev.Confidence, ev.Provenance)
		if err != nil {
			result.BackoffEvents++
			continue
		}
		result.Applied++
		result.EntityIDs[ev.TempID] = id
		result.EntityIDs[ev.CanonicalKey] = id
	}

	for _, f := range plan.Facts {
		result.Attempted++
		subjectID, subjectOK := result.EntityIDs[f.SubjectTempID]
		objectID, objectOK := result.EntityIDs[f.ObjectTempID]
		if !subjectOK || !objectOK {
			result.BackoffEvents++
			continue
		}
		if _, err := a.store.InsertRelationshipFact(ctx, subjectID, f.Predicate, objectID, f.Confidence, a.now(), a.branch); err != nil {
			result.BackoffEvents++
			continue
		}
		result.Applied++
	}

	if result.Attempted > 0 && result.Applied == 0 {
		return result, &PlanApplyFailedError{Attempted: result.Attempted}
	}
	return result, nil
}
