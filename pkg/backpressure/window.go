// Package backpressure implements the adaptive signal and token bucket
// described in §4.4 (C4): dual-horizon EWMA smoothing of queue/latency/
// error signals into a combined pressure value, adaptive amber/red
// thresholds, hysteresis-based level derivation, and a fixed-capacity
// token bucket whose refill rate is scaled down under Red; the
// controller's latency weighting adapts to sustained pressure. Grounded on
// stele/src/policy/backpressure.rs.
package backpressure

import (
	"math"
	"sync"
	"time"
)

// Level is the controller's admission-control state.
type Level int

const (
	Green Level = iota
	Amber
	Red
)

func (l Level) String() string {
	switch l {
	case Green:
		return "green"
	case Amber:
		return "amber"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

// Config tunes every adaptive knob in §4.4. Zero-value half-lives
// collapse the corresponding EWMA to "track the instantaneous value",
// which is what the fully-read backpressure.rs test suite exercises for
// its zero-half-life scenario.
type Config struct {
	ShortHalfLife time.Duration
	LongHalfLife  time.Duration

	DepthWeight   float64
	LatencyWeight float64
	ErrorWeight   float64

	WarmupSamples int

	Hysteresis float64 // default 0.10

	FixedAmber float64 // pre-warmup threshold, default 0.8
	FixedRed   float64 // pre-warmup threshold, default 1.2

	SustainedAmberDuration time.Duration // default N seconds before weight adaptation kicks in
	WeightDecayAlpha       float64       // default 0.05

	BucketCapacity float64
	BucketRefillPerSec float64

	ForcedLevel *Level // environment override for testing, §4.4.5
}

// DefaultConfig matches the constants named throughout §4.4.
func DefaultConfig() Config {
	return Config{
		ShortHalfLife:          5 * time.Second,
		LongHalfLife:           60 * time.Second,
		DepthWeight:            0.6,
		LatencyWeight:          0.3,
		ErrorWeight:            0.1,
		WarmupSamples:          30,
		Hysteresis:             0.10,
		FixedAmber:             0.8,
		FixedRed:               1.2,
		SustainedAmberDuration: 10 * time.Second,
		WeightDecayAlpha:       0.05,
		BucketCapacity:         100,
		BucketRefillPerSec:     20,
	}
}

// Snapshot is a point-in-time report of the window's state, used by the
// supplemental GET /backpressure HTTP endpoint and by admission checks.
type Snapshot struct {
	Level            Level
	CombinedPressure float64
	Short            float64
	Long             float64
	Amber            float64
	Red              float64
	TokensAvailable  float64
	Derivative       float64
}

// Window is the process-wide backpressure controller, guarded by a
// single mutex per §5 ("backpressure window: single process-wide mutex;
// critical sections are O(1) arithmetic").
type Window struct {
	mu  sync.Mutex
	cfg Config

	now func() time.Time

	lastUpdate time.Time
	haveUpdate bool

	depthLong, latencyLong, errorLong float64

	shortCombined, longCombined float64
	haveCombined                bool

	depthWeight, latencyWeight, errorWeight float64

	meanLong, m2Long float64
	sampleCount      int

	level        Level
	inAmberSince time.Time
	amberActive  bool

	prevCombined    float64
	havePrevCombined bool

	tokens     float64
	lastRefill time.Time
}

// NewWindow constructs a window with cfg and the given clock function
// (time.Now in production, a controllable stub in tests).
func NewWindow(cfg Config, now func() time.Time) *Window {
	if now == nil {
		now = time.Now
	}
	w := &Window{
		cfg:           cfg,
		now:           now,
		depthWeight:   cfg.DepthWeight,
		latencyWeight: cfg.LatencyWeight,
		errorWeight:   cfg.ErrorWeight,
		level:         Green,
		tokens:        cfg.BucketCapacity,
		lastRefill:    now(),
	}
	return w
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ewmaAlpha converts a half-life duration and elapsed time into a
// smoothing factor; a zero half-life means "no smoothing, track the
// instantaneous value" (alpha = 1), matching backpressure.rs's handling
// of a zero configured half-life.
func ewmaAlpha(halfLife time.Duration, dt time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	if dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-math.Ln2*dt.Seconds()/halfLife.Seconds())
}

// UpdateMetrics ingests one measurement, per §4.4.1. queueDepth/
// queueCapacity derive a depth ratio, p95Latency/slaMs derive a latency
// ratio (both clamped to [0,10]), validationFailures/processed derive an
// error ratio (clamped to [0,1]); the three are combined into pressure
// b = wd*depth + wl*latency + we*error, smoothed into independent short
// and long EMAs, and the long-horizon combined pressure feeds the
// running mean/variance used by adaptive thresholds.
func (w *Window) UpdateMetrics(queueDepth, queueCapacity, p95LatencyMs, slaMs float64, validationFailures, processed int) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	nowT := w.now()
	dt := time.Duration(0)
	if w.haveUpdate {
		dt = nowT.Sub(w.lastUpdate)
	}
	w.lastUpdate = nowT
	w.haveUpdate = true

	depthRatio := 0.0
	if queueCapacity > 0 {
		depthRatio = queueDepth / queueCapacity
	}
	depthRatio = clamp(depthRatio, 0, 10)

	latencyRatio := 0.0
	if slaMs > 0 {
		latencyRatio = p95LatencyMs / slaMs
	}
	latencyRatio = clamp(latencyRatio, 0, 10)

	errorRatio := 0.0
	if processed > 0 {
		errorRatio = float64(validationFailures) / float64(processed)
	}
	errorRatio = clamp(errorRatio, 0, 1)

	longAlpha := ewmaAlpha(w.cfg.LongHalfLife, dt)
	if w.sampleCount == 0 {
		w.depthLong, w.latencyLong, w.errorLong = depthRatio, latencyRatio, errorRatio
	} else {
		w.depthLong += longAlpha * (depthRatio - w.depthLong)
		w.latencyLong += longAlpha * (latencyRatio - w.latencyLong)
		w.errorLong += longAlpha * (errorRatio - w.errorLong)
	}

	b := w.depthWeight*depthRatio + w.latencyWeight*latencyRatio + w.errorWeight*errorRatio

	shortAlpha := ewmaAlpha(w.cfg.ShortHalfLife, dt)
	longCombinedAlpha := ewmaAlpha(w.cfg.LongHalfLife, dt)
	if !w.haveCombined {
		w.shortCombined, w.longCombined, w.haveCombined = b, b, true
	} else {
		w.shortCombined += shortAlpha * (b - w.shortCombined)
		w.longCombined += longCombinedAlpha * (b - w.longCombined)
	}

	w.sampleCount++
	w.updateRunningStats(w.longCombined)

	amber, red := w.thresholds()
	w.advanceLevel(amber, red)
	w.refillLocked(nowT)
	w.adaptWeights(nowT)

	derivative := 0.0
	if w.havePrevCombined {
		derivative = w.longCombined - w.prevCombined
	}
	w.prevCombined = w.longCombined
	w.havePrevCombined = true

	return Snapshot{
		Level:            w.level,
		CombinedPressure: math.Max(w.shortCombined, w.longCombined),
		Short:            w.shortCombined,
		Long:             w.longCombined,
		Amber:            amber,
		Red:              red,
		TokensAvailable:  w.tokens,
		Derivative:       derivative,
	}
}

// updateRunningStats maintains Welford's online mean/variance of the
// long-horizon combined pressure, used by adaptive thresholds (§4.4.2).
func (w *Window) updateRunningStats(x float64) {
	n := float64(w.sampleCount)
	delta := x - w.meanLong
	w.meanLong += delta / n
	delta2 := x - w.meanLong
	w.m2Long += delta * delta2
}

func (w *Window) stddevLong() float64 {
	if w.sampleCount < 2 {
		return 0
	}
	return math.Sqrt(w.m2Long / float64(w.sampleCount))
}

// thresholds computes (amber, red) per §4.4.2: fixed defaults before
// warmup, adaptive mean+k*sigma afterward, with the amber/red ordering
// invariant enforced by the cross-caps.
func (w *Window) thresholds() (amber, red float64) {
	if w.sampleCount < w.cfg.WarmupSamples {
		return w.cfg.FixedAmber, w.cfg.FixedRed
	}
	sigma := w.stddevLong()
	red = math.Max(w.meanLong+1.2*sigma, 1.0)
	amber = math.Max(w.meanLong+0.5*sigma, 0.6)
	if amber > 0.95*red {
		amber = 0.95 * red
	}
	if red < amber+0.05 {
		red = amber + 0.05
	}
	return amber, red
}

// advanceLevel implements the hysteresis state machine of §4.4.3.
func (w *Window) advanceLevel(amber, red float64) {
	if w.cfg.ForcedLevel != nil {
		w.level = *w.cfg.ForcedLevel
		return
	}
	b := math.Max(w.shortCombined, w.longCombined)
	h := w.cfg.Hysteresis

	switch w.level {
	case Red:
		if b < red*(1-h) {
			if b < amber {
				w.level = Green
			} else {
				w.level = Amber
			}
		}
	case Amber:
		if b >= red {
			w.level = Red
		} else if b < amber*(1-h) {
			w.level = Green
		}
	case Green:
		if b >= red {
			w.level = Red
		} else if b >= amber {
			w.level = Amber
		}
	}
}

// refillLocked adds tokens at the configured rate (scaled down 10% while
// Red, §4.4.4), capped at BucketCapacity. Must be called with mu held.
func (w *Window) refillLocked(now time.Time) {
	dt := now.Sub(w.lastRefill)
	w.lastRefill = now
	if dt <= 0 {
		return
	}
	rate := w.cfg.BucketRefillPerSec
	if w.level == Red {
		rate *= 0.9
	}
	w.tokens = math.Min(w.cfg.BucketCapacity, w.tokens+rate*dt.Seconds())
}

// adaptWeights implements §4.4.4's weight adaptation: sustained Amber
// pushes latency weight toward 0.5 (depth compensates so the three
// weights still sum to ~1, error weight untouched); once out of Amber,
// weights decay back toward the configured defaults with EMA factor
// cfg.WeightDecayAlpha.
func (w *Window) adaptWeights(now time.Time) {
	if w.level == Amber {
		if !w.amberActive {
			w.amberActive = true
			w.inAmberSince = now
		}
		if now.Sub(w.inAmberSince) >= w.cfg.SustainedAmberDuration {
			target := 0.5
			w.latencyWeight += 0.1 * (target - w.latencyWeight)
			w.depthWeight = 1 - w.latencyWeight - w.errorWeight
		}
		return
	}
	w.amberActive = false
	a := w.cfg.WeightDecayAlpha
	w.latencyWeight += a * (w.cfg.LatencyWeight - w.latencyWeight)
	w.depthWeight += a * (w.cfg.DepthWeight - w.depthWeight)
	w.errorWeight += a * (w.cfg.ErrorWeight - w.errorWeight)
}

// TryReserve atomically deducts n tokens if available, per §4.4.4.
func (w *Window) TryReserve(n float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refillLocked(w.now())
	if w.tokens < n {
		return false
	}
	w.tokens -= n
	return true
}

// Snapshot reports the current state without mutating it, for the
// supplemental GET /backpressure endpoint.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	amber, red := w.thresholds()
	derivative := 0.0
	if w.havePrevCombined {
		derivative = w.longCombined - w.prevCombined
	}
	return Snapshot{
		Level:            w.level,
		CombinedPressure: math.Max(w.shortCombined, w.longCombined),
		Short:            w.shortCombined,
		Long:             w.longCombined,
		Amber:            amber,
		Red:              red,
		TokensAvailable:  w.tokens,
		Derivative:       derivative,
	}
}

// RecommendedAction maps the current snapshot to an operator-facing
// action string per §4.4.5.
func RecommendedAction(s Snapshot) string {
	switch s.Level {
	case Red:
		if s.TokensAvailable < 1 {
			return "shed_low_priority"
		}
		return "throttle_new"
	case Amber:
		if s.Derivative > 0.05 {
			return "preemptive_throttle"
		}
		return "throttle"
	default:
		if s.Derivative < -0.1 {
			return "relax"
		}
		return "normal"
	}
}

// InflightGuard is a scoped reservation: Release returns the reserved
// tokens' slot to the bucket's accounting by doing nothing (tokens are
// not refunded once spent, mirroring a true rate limiter), but records
// completion for callers that want to pair Acquire/Release around a unit
// of work for tracing, per backpressure.rs's inflight_guard helper
// (SPEC_FULL supplemental feature 4).
type InflightGuard struct {
	window *Window
	cost   float64
	active bool
}

// AcquireInflightGuard reserves cost tokens and returns a guard if
// successful, or ok=false if the bucket lacks capacity.
func AcquireInflightGuard(w *Window, cost float64) (*InflightGuard, bool) {
	if !w.TryReserve(cost) {
		return nil, false
	}
	return &InflightGuard{window: w, cost: cost, active: true}, true
}

// Release marks the guarded unit of work as finished. It is idempotent.
func (g *InflightGuard) Release() {
	g.active = false
}

// Active reports whether the guard has not yet been released.
func (g *InflightGuard) Active() bool { return g.active }
