package canonical

// Exploration rate bounds from §4.3.4, mirrored from
// stele/src/scribes/core/q_learning_core.rs's MIN_EXPLORATION_RATE.
const (
	minExplorationRate    = 0.01
	explorationAdaptAlpha = 0.2
	backoffPenaltyWeight  = 0.1
)

// ExplorationStats accumulates the running apply-outcome counters that
// feed the exploration-rate adjustment, mirroring QLearningCore's
// MetaLearningStats subset relevant to canonical ingest.
type ExplorationStats struct {
	TotalAttempted     uint64
	TotalApplied       uint64
	PartialApplyEvents uint64
	BackoffEvents      uint64
}

// SuccessRatio returns TotalApplied/TotalAttempted, or 0 if nothing has
// been attempted yet.
func (s ExplorationStats) SuccessRatio() float64 {
	if s.TotalAttempted == 0 {
		return 0
	}
	return float64(s.TotalApplied) / float64(s.TotalAttempted)
}

// ExplorationController tracks an adaptive exploration rate shaped by
// ingest apply outcomes (§4.3.4). It has no notion of states/actions —
// unlike its Q-learning ancestor, canonical ingest only needs the reward
// shaping and exploration-rate adaptation halves of that design.
type ExplorationController struct {
	rate  float64
	stats ExplorationStats
}

// NewExplorationController starts at initialRate, clamped to
// [minExplorationRate, 1].
func NewExplorationController(initialRate float64) *ExplorationController {
	return &ExplorationController{rate: clampExploration(initialRate)}
}

func clampExploration(r float64) float64 {
	if r < minExplorationRate {
		return minExplorationRate
	}
	if r > 1 {
		return 1
	}
	return r
}

// Rate returns the current exploration rate.
func (c *ExplorationController) Rate() float64 { return c.rate }

// Stats returns the accumulated outcome counters.
func (c *ExplorationController) Stats() ExplorationStats { return c.stats }

// RecordApplyOutcome folds one ApplyResult into the controller's running
// statistics and exploration rate, returning the shaped reward for this
// outcome: reward = success_ratio − (1 if attempted>0 ∧ applied=0) −
// 0.1·backoffs, then nudges the exploration rate toward (1 −
// success_ratio) with EMA weight 0.2 (§4.3.4).
func (c *ExplorationController) RecordApplyOutcome(result ApplyResult) float64 {
	attempted, applied, backoffs := result.Attempted, result.Applied, result.BackoffEvents

	c.stats.TotalAttempted += uint64(attempted)
	c.stats.TotalApplied += uint64(applied)
	if applied > 0 && applied < attempted {
		c.stats.PartialApplyEvents++
	}
	if backoffs > 0 {
		c.stats.BackoffEvents += uint64(backoffs)
	}

	successRatio := 0.0
	if attempted > 0 {
		successRatio = float64(applied) / float64(attempted)
	}

	shaped := successRatio
	if attempted > 0 && applied == 0 {
		shaped -= 1.0
	}
	shaped -= backoffPenaltyWeight * float64(backoffs)

	target := clampExploration(1.0 - successRatio)
	c.rate = clampExploration(c.rate + explorationAdaptAlpha*(target-c.rate))

	return shaped
}
