package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLead converges after a fixed number of refinements: each Refine
// bumps a counter in Details so refinement always observably changes it.
type stubLead struct {
	refinements int
}

func (l *stubLead) ProposeInitial(ctx context.Context) (Proposal, error) {
	return Proposal{Summary: "initial", Details: map[string]any{"step": 0}}, nil
}

func (l *stubLead) Refine(ctx context.Context, prior Proposal, directive string) (Proposal, error) {
	l.refinements++
	step := prior.Details["step"].(int) + 1
	return Proposal{Summary: "refined", Details: map[string]any{"step": step}}, nil
}

type stubStalledLead struct{}

func (l *stubStalledLead) ProposeInitial(ctx context.Context) (Proposal, error) {
	return Proposal{Details: map[string]any{"step": 0}}, nil
}

func (l *stubStalledLead) Refine(ctx context.Context, prior Proposal, directive string) (Proposal, error) {
	return prior, nil // never changes -> refinement stalled
}

type stubPanelMember struct{ name string }

func (s stubPanelMember) Name() string { return s.name }
func (s stubPanelMember) GiveFeedback(ctx context.Context, p Proposal) (Feedback, error) {
	return Feedback{From: s.name, Content: "looks fine"}, nil
}

type stubDistiller struct{}

func (stubDistiller) Distill(ctx context.Context, fb []Feedback) (string, error) {
	return "consensus: fine", nil
}

// stubArbiterAfterN reports goal achieved once called >= n times.
type stubArbiterAfterN struct {
	n     int
	calls int
}

func (a *stubArbiterAfterN) Assess(ctx context.Context, p Proposal, feedback string) (Assessment, error) {
	a.calls++
	if a.calls >= a.n {
		return Assessment{GoalAchieved: true, Confidence: 0.9}, nil
	}
	return Assessment{GoalAchieved: false, Confidence: 0.2}, nil
}

type stubScorer struct{ score int }

func (s stubScorer) Score(ctx context.Context, current, previous Proposal, feedback string) (int, error) {
	return s.score, nil
}

func TestSession_CompletesWhenGoalAchieved(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.MinConfidence = 0.5
	s := NewSession("sess1", cfg, &stubLead{}, []FeedbackSpecialist{stubPanelMember{"p1"}}, stubDistiller{}, &stubArbiterAfterN{n: 2}, stubScorer{score: 7}, nil)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.GoalAchieved)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
}

func TestSession_RefinementStalledError(t *testing.T) {
	cfg := DefaultSessionConfig()
	s := NewSession("sess1", cfg, &stubStalledLead{}, []FeedbackSpecialist{stubPanelMember{"p1"}}, stubDistiller{}, &stubArbiterAfterN{n: 1000}, stubScorer{score: 5}, nil)

	_, err := s.Run(context.Background())
	require.Error(t, err)
	var rse *RefinementStalledError
	require.ErrorAs(t, err, &rse)
}

func TestSession_TimesOutWhenNeverAchieved(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.MaxIterations = 2
	s := NewSession("sess1", cfg, &stubLead{}, []FeedbackSpecialist{stubPanelMember{"p1"}}, stubDistiller{}, &stubArbiterAfterN{n: 1000}, stubScorer{score: 5}, nil)

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSession_ClampsAssessmentConfidence(t *testing.T) {
	a := clampAssessment(Assessment{Confidence: 5})
	assert.Equal(t, 1.0, a.Confidence)
	a = clampAssessment(Assessment{Confidence: -3})
	assert.Equal(t, 0.0, a.Confidence)
}

func TestSession_PlateauTriggersBreakoutOrConfigError(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.TrackerConfig.PlateauIterations = 1
	cfg.TrackerConfig.MomentumThreshold = 100 // guarantee plateau on first scored iteration
	cfg.TrackerConfig.VarianceFloor = 100
	cfg.MaxIterations = 5
	s := NewSession("sess1", cfg, &stubLead{}, []FeedbackSpecialist{stubPanelMember{"p1"}}, stubDistiller{}, &stubArbiterAfterN{n: 1000}, stubScorer{score: 5}, nil)

	_, err := s.Run(context.Background())
	require.Error(t, err)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce, "no breakout summarizer configured, so a plateau must surface as configuration error")
}
