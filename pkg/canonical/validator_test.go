package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePlan() CanonicalPlan {
	return CanonicalPlan{
		Entities: []CanonicalEntity{
			{TempID: "n1", CanonicalKey: "person:ada", Confidence: 0.9},
			{TempID: "n2", CanonicalKey: "person:low", Confidence: 0.2},
			{TempID: "n3", CanonicalKey: "", Confidence: 0.9},
		},
		Tasks: []CanonicalTask{
			{TempID: "t1", CanonicalKey: "task:lead", Confidence: 0.8},
			{TempID: "t2", CanonicalKey: "task:weak", Confidence: 0.1},
		},
		Facts: []CanonicalFact{
			{SubjectTempID: "n1", Predicate: "KNOWS", ObjectTempID: "n2", Confidence: 0.9},
			{SubjectTempID: "n1", Predicate: "KNOWS", ObjectTempID: "missing", Confidence: 0.9},
		},
		Scores: Scores{Overall: 0.8},
	}
}

func TestValidate_RejectsWholePlanBelowMinPlanConfidence(t *testing.T) {
	plan := basePlan()
	plan.Scores.Overall = 0.3

	_, err := Validate(plan, ValidationConfig{MinPlanConfidence: 0.5, MinItemConfidence: 0.5})
	require.Error(t, err)
	var pie *PlanInvalidError
	require.ErrorAs(t, err, &pie)
}

func TestValidate_FiltersBelowThresholdAndEmptyKeyEntities(t *testing.T) {
	plan := basePlan()

	out, err := Validate(plan, ValidationConfig{MinPlanConfidence: 0.5, MinItemConfidence: 0.5})
	require.NoError(t, err)

	require.Len(t, out.Entities, 1)
	assert.Equal(t, "person:ada", out.Entities[0].CanonicalKey)
}

func TestValidate_DropsFactsReferencingFilteredEntities(t *testing.T) {
	plan := basePlan()

	out, err := Validate(plan, ValidationConfig{MinPlanConfidence: 0.5, MinItemConfidence: 0.5})
	require.NoError(t, err)

	// n2 was filtered (confidence 0.2 < 0.5), so the fact referencing it
	// should not survive even though its own confidence is high.
	assert.Empty(t, out.Facts)
}

func TestValidate_TasksFilteredPurelyByItemConfidence(t *testing.T) {
	plan := basePlan()

	out, err := Validate(plan, ValidationConfig{MinPlanConfidence: 0.5, MinItemConfidence: 0.5})
	require.NoError(t, err)

	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "task:lead", out.Tasks[0].CanonicalKey)
}
