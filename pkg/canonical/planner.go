package canonical

import (
	"strings"
	"time"
)

// canonicalKey matches §4.3.1's `canonical_key = lower(type)+":"+lower(name)`.
func canonicalKey(typ, name string) string {
	return strings.ToLower(typ) + ":" + strings.ToLower(name)
}

// predicateForVerb picks the predicate for an inferred fact when no
// explicit MANAGES edge is present: the lowercased action verb is
// inspected, so any verb containing "lead" (lead, leads, leading) gives
// LEADS, any verb containing "manage" gives MANAGES, and every other verb
// gives RELATED_TO.
func predicateForVerb(verb string) string {
	v := strings.ToLower(verb)
	switch {
	case strings.Contains(v, "lead"):
		return "LEADS"
	case strings.Contains(v, "manage"):
		return "MANAGES"
	}
	return "RELATED_TO"
}

// HeuristicPlanner implements Stage A: it turns an ExtractedData bundle
// into a CanonicalPlan with no LLM involvement, purely from node
// kinds/attributes and relationship structure. Grounded on
// stele/src/scribes/canonical/mod.rs's HeuristicScribe.plan().
type HeuristicPlanner struct{}

func NewHeuristicPlanner() *HeuristicPlanner { return &HeuristicPlanner{} }

// Plan produces a CanonicalPlan from data.
func (p *HeuristicPlanner) Plan(data ExtractedData) CanonicalPlan {
	plan := CanonicalPlan{
		LineageHints: make(map[string]string),
		Scores:       Scores{PerItem: make(map[string]float64)},
	}

	nodesByTempID := make(map[string]Node, len(data.Nodes))
	for _, n := range data.Nodes {
		nodesByTempID[n.TempID] = n
	}

	totalConfidence := 0.0
	itemCount := 0

	for _, n := range data.Nodes {
		switch n.Kind {
		case NodeEntity:
			key := canonicalKey(n.Type, n.Name)
			plan.Entities = append(plan.Entities, CanonicalEntity{
				TempID:       n.TempID,
				CanonicalKey: key,
				Type:         n.Type,
				Name:         n.Name,
				Confidence:   n.Confidence,
				Provenance:   map[string]any{"source": "heuristic_planner"},
				Extra:        n.Attributes,
			})
			plan.LineageHints[n.TempID] = key

		case NodeAction:
			key := "task:" + strings.ToLower(n.Name)
			plan.Tasks = append(plan.Tasks, CanonicalTask{
				TempID:       n.TempID,
				CanonicalKey: key,
				Description:  n.Name,
				Confidence:   n.Confidence,
				Provenance:   map[string]any{"source": "heuristic_planner"},
			})
			plan.LineageHints[n.TempID] = key

		case NodeTemporal:
			key := "event:" + strings.ToLower(n.Name)
			event := CanonicalEvent{
				TempID:       n.TempID,
				CanonicalKey: key,
				Description:  n.Name,
				Confidence:   n.Confidence,
				Provenance:   map[string]any{"source": "heuristic_planner"},
			}
			if occurredAt, ok := n.Attributes["occurred_at"].(time.Time); ok {
				event.OccurredAt = occurredAt
			}
			plan.Events = append(plan.Events, event)
			plan.LineageHints[n.TempID] = key
		}

		plan.Scores.PerItem[n.TempID] = n.Confidence
		totalConfidence += n.Confidence
		itemCount++
	}

	// Direct facts: relationships whose endpoints are both entity temp-ids.
	for _, rel := range data.Relationships {
		from, fromOK := nodesByTempID[rel.FromTempID]
		to, toOK := nodesByTempID[rel.ToTempID]
		if !fromOK || !toOK || from.Kind != NodeEntity || to.Kind != NodeEntity {
			continue
		}
		plan.Facts = append(plan.Facts, CanonicalFact{
			SubjectTempID: rel.FromTempID,
			Predicate:     string(rel.Kind),
			ObjectTempID:  rel.ToTempID,
			Confidence:    rel.Confidence,
			Provenance:    map[string]any{"source": "heuristic_planner", "direct": true},
		})
	}

	// Inferred subject->object facts through an Action node's
	// HAS_SUBJECT/PERFORMS and HAS_OBJECT/MANAGES edges (§4.3.1).
	for _, n := range data.Nodes {
		if n.Kind != NodeAction {
			continue
		}
		subject, subjectOK := actionEndpoint(data.Relationships, nodesByTempID, n.TempID, RelHasSubject, RelPerforms, true)
		object, objectOK, explicitManages := actionObjectEndpoint(data.Relationships, nodesByTempID, n.TempID)
		if !subjectOK || !objectOK {
			continue
		}
		predicate := "RELATED_TO"
		if explicitManages {
			predicate = "MANAGES"
		} else {
			predicate = predicateForVerb(n.Name)
		}
		plan.Facts = append(plan.Facts, CanonicalFact{
			SubjectTempID: subject,
			Predicate:     predicate,
			ObjectTempID:  object,
			Confidence:    n.Confidence,
			Provenance:    map[string]any{"source": "heuristic_planner", "inferred_from_action": n.TempID},
		})
	}

	if itemCount > 0 {
		plan.Scores.Overall = totalConfidence / float64(itemCount)
	}
	return plan
}

// actionEndpoint finds the entity temp-id connected to actionTempID via
// either of two relationship kinds treated as equivalent ("subject"
// wiring: HAS_SUBJECT or PERFORMS both point from the action to its
// subject entity in this model).
func actionEndpoint(rels []Relationship, nodes map[string]Node, actionTempID string, kindA, kindB RelationshipKind, fromAction bool) (string, bool) {
	for _, r := range rels {
		if r.Kind != kindA && r.Kind != kindB {
			continue
		}
		var actionSide, otherSide string
		if fromAction {
			actionSide, otherSide = r.FromTempID, r.ToTempID
		} else {
			actionSide, otherSide = r.ToTempID, r.FromTempID
		}
		if actionSide != actionTempID {
			continue
		}
		if n, ok := nodes[otherSide]; ok && n.Kind == NodeEntity {
			return otherSide, true
		}
	}
	return "", false
}

// actionObjectEndpoint finds the action's object entity, reporting
// whether the connecting edge was an explicit MANAGES edge (which wins
// predicate selection outright per §4.3.1).
func actionObjectEndpoint(rels []Relationship, nodes map[string]Node, actionTempID string) (tempID string, ok bool, explicitManages bool) {
	for _, r := range rels {
		if r.Kind != RelHasObject && r.Kind != RelManages {
			continue
		}
		if r.FromTempID != actionTempID {
			continue
		}
		if n, nok := nodes[r.ToTempID]; nok && n.Kind == NodeEntity {
			return r.ToTempID, true, r.Kind == RelManages
		}
	}
	return "", false, false
}
