package orchestration

import "math"

// ProgressTrackerConfig tunes the plateau-detection sensitivity described
// in §4.2.3.
type ProgressTrackerConfig struct {
	ShortHalfLife     float64 // in iterations
	LongHalfLife      float64
	MomentumThreshold float64
	PlateauIterations int
	VarianceFloor     float64
	HistorySize       int
}

// DefaultProgressTrackerConfig mirrors the scale of the progress score
// (integers 1-10): a momentum threshold of 0.3 and variance floor of 0.5
// are small relative to that range, so only genuinely flat runs plateau.
func DefaultProgressTrackerConfig() ProgressTrackerConfig {
	return ProgressTrackerConfig{
		ShortHalfLife:     2,
		LongHalfLife:      6,
		MomentumThreshold: 0.3,
		PlateauIterations: 3,
		VarianceFloor:     0.5,
		HistorySize:       12,
	}
}

// ProgressTracker maintains two EMAs of the integer progress score
// (§4.2.2 step 5) and declares a plateau when momentum (short minus
// long) stays small and recent variance is low for several iterations in
// a row. Grounded on sleet/src/workflows/planning_session.rs's
// ProgressTracker.
type ProgressTracker struct {
	cfg ProgressTrackerConfig

	hasShort, hasLong bool
	short, long       float64

	history       []float64
	belowStreak   int
}

func NewProgressTracker(cfg ProgressTrackerConfig) *ProgressTracker {
	return &ProgressTracker{cfg: cfg}
}

// alpha converts a half-life (in iterations, i.e. Δt == 1 per update) to
// an EWMA smoothing factor, the same formula §4.4.1 uses for the
// backpressure window: α = 1 - exp(-ln2 · Δt / half_life).
func alpha(halfLife float64) float64 {
	if halfLife <= 0 {
		return 1
	}
	return 1 - math.Exp(-math.Ln2/halfLife)
}

// Update records a new progress score and recomputes momentum.
func (t *ProgressTracker) Update(score int) {
	v := float64(score)

	if !t.hasShort {
		t.short, t.hasShort = v, true
	} else {
		a := alpha(t.cfg.ShortHalfLife)
		t.short = t.short + a*(v-t.short)
	}
	if !t.hasLong {
		t.long, t.hasLong = v, true
	} else {
		a := alpha(t.cfg.LongHalfLife)
		t.long = t.long + a*(v-t.long)
	}

	t.history = append(t.history, v)
	if len(t.history) > t.cfg.HistorySize {
		t.history = t.history[len(t.history)-t.cfg.HistorySize:]
	}

	if math.Abs(t.Momentum()) < t.cfg.MomentumThreshold && t.variance() < t.cfg.VarianceFloor {
		t.belowStreak++
	} else {
		t.belowStreak = 0
	}
}

// Momentum is short EMA minus long EMA.
func (t *ProgressTracker) Momentum() float64 { return t.short - t.long }

func (t *ProgressTracker) variance() float64 {
	if len(t.history) < 2 {
		return math.Inf(1) // not enough data to call it a plateau yet
	}
	mean := 0.0
	for _, v := range t.history {
		mean += v
	}
	mean /= float64(len(t.history))
	sq := 0.0
	for _, v := range t.history {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(t.history))
}

// IsPlateau reports whether momentum has stayed below threshold with low
// variance for at least PlateauIterations consecutive updates.
func (t *ProgressTracker) IsPlateau() bool {
	return t.belowStreak >= t.cfg.PlateauIterations
}

// Reset clears all history, used by the breakout strategy (§4.2.2 step 1:
// "plateau resets clear history").
func (t *ProgressTracker) Reset() {
	*t = ProgressTracker{cfg: t.cfg}
}
