package canonical

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplier_AppliesEntitiesTasksEventsFacts(t *testing.T) {
	store := NewMemStore(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	applier := NewApplier(store, "main")

	plan := ValidatedPlan{
		Entities: []CanonicalEntity{
			{TempID: "n1", CanonicalKey: "person:ada", Type: "Person", Name: "Ada", Confidence: 0.9},
			{TempID: "n2", CanonicalKey: "person:babbage", Type: "Person", Name: "Babbage", Confidence: 0.9},
		},
		Tasks: []CanonicalTask{
			{TempID: "t1", CanonicalKey: "task:lead", Description: "Lead", Confidence: 0.9},
		},
		Facts: []CanonicalFact{
			{SubjectTempID: "n1", Predicate: "KNOWS", ObjectTempID: "n2", Confidence: 0.9},
		},
	}

	result, err := applier.Apply(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Attempted)
	assert.Equal(t, 4, result.Applied)
	assert.Equal(t, 0, result.BackoffEvents)
	assert.Contains(t, result.EntityIDs, "n1")
	assert.Contains(t, result.EntityIDs, "n2")

	facts, err := store.GetCurrentRelationshipFacts(context.Background(), nil, nil, nil, "main")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, result.EntityIDs["n1"], facts[0].Subject)
	assert.Equal(t, result.EntityIDs["n2"], facts[0].Object)
}

func TestApplier_UpsertIsIdempotentByCanonicalKey(t *testing.T) {
	store := NewMemStore(nil)
	applier := NewApplier(store, "main")

	plan := ValidatedPlan{
		Entities: []CanonicalEntity{
			{TempID: "n1", CanonicalKey: "person:ada", Type: "Person", Name: "Ada", Confidence: 0.9,
				Provenance: map[string]any{"source": "run1"}},
		},
	}

	first, err := applier.Apply(context.Background(), plan)
	require.NoError(t, err)

	plan.Entities[0].Provenance = map[string]any{"source": "run2", "extra_field": "x"}
	second, err := applier.Apply(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, first.EntityIDs["n1"], second.EntityIDs["n1"])
}

func TestApplier_FactSkippedWhenEndpointMissing(t *testing.T) {
	store := NewMemStore(nil)
	applier := NewApplier(store, "main")

	plan := ValidatedPlan{
		Facts: []CanonicalFact{
			{SubjectTempID: "ghost1", Predicate: "KNOWS", ObjectTempID: "ghost2", Confidence: 0.9},
		},
	}

	result, err := applier.Apply(context.Background(), plan)
	require.Error(t, err)
	var pafe *PlanApplyFailedError
	require.ErrorAs(t, err, &pafe)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 1, result.BackoffEvents)
}

func TestApplier_EmptyPlanAppliesTriviallyWithoutError(t *testing.T) {
	store := NewMemStore(nil)
	applier := NewApplier(store, "main")

	result, err := applier.Apply(context.Background(), ValidatedPlan{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted)
	assert.Equal(t, 0, result.Applied)
}
