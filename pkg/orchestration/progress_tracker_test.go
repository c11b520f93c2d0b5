package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_DetectsPlateauOnFlatScores(t *testing.T) {
	cfg := DefaultProgressTrackerConfig()
	cfg.PlateauIterations = 3
	tr := NewProgressTracker(cfg)

	for i := 0; i < 6; i++ {
		tr.Update(5)
	}
	assert.True(t, tr.IsPlateau())
}

func TestProgressTracker_NoPlateauOnRisingScores(t *testing.T) {
	cfg := DefaultProgressTrackerConfig()
	tr := NewProgressTracker(cfg)

	for i, score := range []int{1, 3, 5, 7, 9, 10} {
		_ = i
		tr.Update(score)
	}
	assert.False(t, tr.IsPlateau())
}

func TestProgressTracker_ResetClearsPlateau(t *testing.T) {
	cfg := DefaultProgressTrackerConfig()
	cfg.PlateauIterations = 2
	tr := NewProgressTracker(cfg)
	tr.Update(5)
	tr.Update(5)
	tr.Update(5)
	assert.True(t, tr.IsPlateau())

	tr.Reset()
	assert.False(t, tr.IsPlateau())
}
