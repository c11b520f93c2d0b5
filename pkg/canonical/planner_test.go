package canonical

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestHeuristicPlanner_EntitiesTasksEvents(t *testing.T) {
	data := ExtractedData{
		Nodes: []Node{
			{TempID: "n1", Kind: NodeEntity, Type: "Person", Name: "Ada", Confidence: 0.9},
			{TempID: "n2", Kind: NodeEntity, Type: "Organization", Name: "Acme", Confidence: 0.8},
			{TempID: "n3", Kind: NodeAction, Name: "Lead", Confidence: 0.7},
			{TempID: "n4", Kind: NodeTemporal, Name: "Q1 Kickoff", Confidence: 0.6,
				Attributes: map[string]any{"occurred_at": time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}},
		},
		Relationships: []Relationship{
			{FromTempID: "n3", ToTempID: "n1", Kind: RelHasSubject, Confidence: 0.9},
			{FromTempID: "n3", ToTempID: "n2", Kind: RelHasObject, Confidence: 0.9},
		},
	}

	plan := NewHeuristicPlanner().Plan(data)

	assert.Len(t, plan.Entities, 2)
	assert.Equal(t, "person:ada", plan.Entities[0].CanonicalKey)
	assert.Equal(t, "organization:acme", plan.Entities[1].CanonicalKey)

	assert.Len(t, plan.Tasks, 1)
	assert.Equal(t, "task:lead", plan.Tasks[0].CanonicalKey)

	assert.Len(t, plan.Events, 1)
	assert.Equal(t, "event:q1 kickoff", plan.Events[0].CanonicalKey)
	assert.Equal(t, 2026, plan.Events[0].OccurredAt.Year())

	// Inferred subject->object fact from the action, verb "lead" -> LEADS.
	var inferred *CanonicalFact
	for i := range plan.Facts {
		if plan.Facts[i].SubjectTempID == "n1" && plan.Facts[i].ObjectTempID == "n2" {
			inferred = &plan.Facts[i]
		}
	}
	if assert.NotNil(t, inferred) {
		assert.Equal(t, "LEADS", inferred.Predicate)
	}

	assert.InDelta(t, 0.75, plan.Scores.Overall, 0.01)

	wantLineage := map[string]string{
		"n1": "person:ada",
		"n2": "organization:acme",
		"n3": "task:lead",
		"n4": "event:q1 kickoff",
	}
	if diff := cmp.Diff(wantLineage, plan.LineageHints); diff != "" {
		t.Errorf("lineage hints mismatch (-want +got):\n%s", diff)
	}
}

func TestHeuristicPlanner_ExplicitManagesEdgeWinsPredicate(t *testing.T) {
	data := ExtractedData{
		Nodes: []Node{
			{TempID: "n1", Kind: NodeEntity, Type: "Person", Name: "Grace", Confidence: 0.9},
			{TempID: "n2", Kind: NodeEntity, Type: "Team", Name: "Platform", Confidence: 0.9},
			{TempID: "n3", Kind: NodeAction, Name: "Oversee", Confidence: 0.9},
		},
		Relationships: []Relationship{
			{FromTempID: "n3", ToTempID: "n1", Kind: RelHasSubject, Confidence: 0.9},
			{FromTempID: "n3", ToTempID: "n2", Kind: RelManages, Confidence: 0.9},
		},
	}

	plan := NewHeuristicPlanner().Plan(data)

	var inferred *CanonicalFact
	for i := range plan.Facts {
		if plan.Facts[i].SubjectTempID == "n1" {
			inferred = &plan.Facts[i]
		}
	}
	if assert.NotNil(t, inferred) {
		assert.Equal(t, "MANAGES", inferred.Predicate)
	}
}

func TestHeuristicPlanner_DirectFactFromEntityToEntityRelationship(t *testing.T) {
	data := ExtractedData{
		Nodes: []Node{
			{TempID: "n1", Kind: NodeEntity, Type: "Person", Name: "Ada", Confidence: 0.9},
			{TempID: "n2", Kind: NodeEntity, Type: "Person", Name: "Babbage", Confidence: 0.9},
		},
		Relationships: []Relationship{
			{FromTempID: "n1", ToTempID: "n2", Kind: "COLLABORATES_WITH", Confidence: 0.85},
		},
	}

	plan := NewHeuristicPlanner().Plan(data)
	if assert.Len(t, plan.Facts, 1) {
		assert.Equal(t, "COLLABORATES_WITH", plan.Facts[0].Predicate)
		assert.Equal(t, "n1", plan.Facts[0].SubjectTempID)
		assert.Equal(t, "n2", plan.Facts[0].ObjectTempID)
	}
}
