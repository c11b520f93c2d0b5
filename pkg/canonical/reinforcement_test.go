package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplorationController_FullSuccessDoesNotRaiseExploration(t *testing.T) {
	c := NewExplorationController(0.5)
	reward := c.RecordApplyOutcome(ApplyResult{Attempted: 4, Applied: 4})

	assert.InDelta(t, 1.0, reward, 1e-9)
	assert.Less(t, c.Rate(), 0.5)
}

func TestExplorationController_TotalFailureRaisesExplorationAndPenalisesReward(t *testing.T) {
	c := NewExplorationController(0.1)
	reward := c.RecordApplyOutcome(ApplyResult{Attempted: 3, Applied: 0, BackoffEvents: 3})

	assert.InDelta(t, -1.3, reward, 1e-9)
	assert.Greater(t, c.Rate(), 0.1)
}

func TestExplorationController_RateNeverBelowMinimum(t *testing.T) {
	c := NewExplorationController(minExplorationRate)
	for i := 0; i < 50; i++ {
		c.RecordApplyOutcome(ApplyResult{Attempted: 10, Applied: 10})
	}
	assert.GreaterOrEqual(t, c.Rate(), minExplorationRate)
}

func TestExplorationController_StatsAccumulateAcrossOutcomes(t *testing.T) {
	c := NewExplorationController(0.3)
	c.RecordApplyOutcome(ApplyResult{Attempted: 4, Applied: 3, BackoffEvents: 1})
	c.RecordApplyOutcome(ApplyResult{Attempted: 2, Applied: 2})

	stats := c.Stats()
	assert.Equal(t, uint64(6), stats.TotalAttempted)
	assert.Equal(t, uint64(5), stats.TotalApplied)
	assert.Equal(t, uint64(1), stats.PartialApplyEvents)
	assert.Equal(t, uint64(1), stats.BackoffEvents)
	assert.InDelta(t, 5.0/6.0, stats.SuccessRatio(), 1e-9)
}
