package canonical

import "fmt"

// ValidationConfig carries the two confidence gates from §4.3.1/§6.5:
// STELE_MIN_PLAN_CONFIDENCE and STELE_MIN_ITEM_CONFIDENCE.
type ValidationConfig struct {
	MinPlanConfidence float64
	MinItemConfidence float64
}

// ValidatedPlan is a CanonicalPlan with below-threshold items removed;
// Apply only ever sees a ValidatedPlan.
type ValidatedPlan struct {
	Entities []CanonicalEntity
	Tasks    []CanonicalTask
	Events   []CanonicalEvent
	Facts    []CanonicalFact
}

// Validate implements Stage B's validation rules (§4.3.1): reject the
// whole plan if overall confidence is too low; otherwise drop (not
// reject) entities with an empty canonical_key or below item-confidence,
// and drop facts referencing a key that didn't survive entity filtering
// or that are themselves below item-confidence.
func Validate(plan CanonicalPlan, cfg ValidationConfig) (ValidatedPlan, error) {
	if plan.Scores.Overall < cfg.MinPlanConfidence {
		return ValidatedPlan{}, &PlanInvalidError{Reason: fmt.Sprintf("overall confidence %.3f below minimum %.3f", plan.Scores.Overall, cfg.MinPlanConfidence)}
	}

	var out ValidatedPlan
	survivingTempIDs := make(map[string]bool)

	for _, e := range plan.Entities {
		if e.CanonicalKey == "" || e.Confidence < cfg.MinItemConfidence {
			continue
		}
		out.Entities = append(out.Entities, e)
		survivingTempIDs[e.TempID] = true
	}
	for _, t := range plan.Tasks {
		if t.Confidence < cfg.MinItemConfidence {
			continue
		}
		out.Tasks = append(out.Tasks, t)
	}
	for _, ev := range plan.Events {
		if ev.Confidence < cfg.MinItemConfidence {
			continue
		}
		out.Events = append(out.Events, ev)
	}
	for _, f := range plan.Facts {
		if f.Confidence < cfg.MinItemConfidence {
			continue
		}
		if !survivingTempIDs[f.SubjectTempID] || !survivingTempIDs[f.ObjectTempID] {
			continue
		}
		out.Facts = append(out.Facts, f)
	}

	return out, nil
}
