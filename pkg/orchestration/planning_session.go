package orchestration

import (
	"context"
	"reflect"

	"golang.org/x/sync/errgroup"
)

// Proposal is the lead specialist's working answer. Details is the
// subobject that Refine must observably change (§4.2.2); Summary is a
// short human-readable gloss used when feeding the proposal back into
// feedback/assessment prompts.
type Proposal struct {
	Summary string
	Details map[string]any
}

// Feedback is one specialist's reaction to the current proposal.
type Feedback struct {
	From    string
	Content string
}

// Assessment is the arbiter's verdict on whether the session's goal has
// been met (§4.2.2 step 4).
type Assessment struct {
	GoalAchieved    bool
	Confidence      float64
	Reasoning       string
	MissingElements []string
}

// clampAssessment enforces the validator contract described in §4.2.2:
// required fields (none are pointer-optional here, so this only clamps
// confidence) and range clamping.
func clampAssessment(a Assessment) Assessment {
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a
}

// LeadSpecialist proposes and refines the working answer.
type LeadSpecialist interface {
	ProposeInitial(ctx context.Context) (Proposal, error)
	Refine(ctx context.Context, prior Proposal, distilledFeedback string) (Proposal, error)
}

// FeedbackSpecialist reacts to a proposal. Multiple specialists are
// queried in parallel each iteration (§4.2.2 step 3).
type FeedbackSpecialist interface {
	Name() string
	GiveFeedback(ctx context.Context, proposal Proposal) (Feedback, error)
}

// Distiller merges parallel feedback into one prioritised summary.
type Distiller interface {
	Distill(ctx context.Context, feedback []Feedback) (string, error)
}

// Arbiter judges whether the session's goal has been achieved.
type Arbiter interface {
	Assess(ctx context.Context, proposal Proposal, distilledFeedback string) (Assessment, error)
}

// Scorer compares the current iteration against the previous one and
// returns an integer progress score in [1,10] (§4.2.2 step 5).
type Scorer interface {
	Score(ctx context.Context, current, previous Proposal, distilledFeedback string) (int, error)
}

// BreakoutSummarizer compresses iteration history into a single
// directive when the progress tracker detects a plateau (§4.2.2 step 1).
type BreakoutSummarizer interface {
	Summarize(ctx context.Context, history []IterationRecord) (string, error)
}

// IterationRecord is one completed iteration's outcome, kept for the
// breakout summarizer and for session diagnostics.
type IterationRecord struct {
	Proposal   Proposal
	Feedback   string
	Assessment Assessment
	Score      int
}

// SessionConfig bounds a planning session's iteration count and
// completion threshold (§4.2.2).
type SessionConfig struct {
	MaxIterations    int
	MinConfidence    float64
	TrackerConfig    ProgressTrackerConfig
}

// DefaultSessionConfig matches typical LLM-backed planning loops: a
// handful of iterations is usually enough to converge or plateau.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxIterations: 20,
		MinConfidence: 0.75,
		TrackerConfig: DefaultProgressTrackerConfig(),
	}
}

// clampScore enforces §4.2.2 step 5's "integer 1-10" range.
func clampScore(s int) int {
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}

// Session runs the iterative propose/feedback/assess/score loop of
// §4.2.2. Grounded on sleet/src/workflows/planning_session.rs's
// PlanningSession.run() and its phase methods.
type Session struct {
	ID      string
	cfg     SessionConfig
	lead    LeadSpecialist
	panel   []FeedbackSpecialist
	distill Distiller
	arbiter Arbiter
	scorer  Scorer
	breakout BreakoutSummarizer

	tracker *ProgressTracker
	history []IterationRecord

	directive string // breakout-produced guidance carried into the next proposal
}

// NewSession constructs a session. All collaborator interfaces are
// required except breakout, which may be nil if the caller never
// expects a plateau (in that case IsPlateau firing becomes a
// ConfigurationError rather than silently looping).
func NewSession(id string, cfg SessionConfig, lead LeadSpecialist, panel []FeedbackSpecialist, distill Distiller, arbiter Arbiter, scorer Scorer, breakout BreakoutSummarizer) *Session {
	return &Session{
		ID:       id,
		cfg:      cfg,
		lead:     lead,
		panel:    panel,
		distill:  distill,
		arbiter:  arbiter,
		scorer:   scorer,
		breakout: breakout,
		tracker:  NewProgressTracker(cfg.TrackerConfig),
	}
}

// Run executes the session loop until the goal is achieved with
// sufficient confidence, the iteration budget is exhausted (ErrTimeout),
// or a phase fails.
func (s *Session) Run(ctx context.Context) (Assessment, error) {
	var prior Proposal
	var priorFeedback string
	havePrior := false

	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		if s.tracker.IsPlateau() {
			if err := s.applyBreakout(ctx); err != nil {
				return Assessment{}, err
			}
			havePrior = false
		}

		proposal, err := s.proposalPhase(ctx, prior, priorFeedback, havePrior)
		if err != nil {
			return Assessment{}, err
		}

		feedback, distilled, err := s.feedbackPhase(ctx, proposal)
		if err != nil {
			return Assessment{}, err
		}
		_ = feedback

		assessment, err := s.arbiter.Assess(ctx, proposal, distilled)
		if err != nil {
			return Assessment{}, err
		}
		assessment = clampAssessment(assessment)

		score := 5
		if havePrior {
			raw, err := s.scorer.Score(ctx, proposal, prior, distilled)
			if err != nil {
				return Assessment{}, err
			}
			score = clampScore(raw)
		}
		s.tracker.Update(score)

		s.history = append(s.history, IterationRecord{
			Proposal:   proposal,
			Feedback:   distilled,
			Assessment: assessment,
			Score:      score,
		})

		if assessment.GoalAchieved && assessment.Confidence >= s.cfg.MinConfidence {
			return assessment, nil
		}

		prior = proposal
		priorFeedback = distilled
		havePrior = true
	}

	return Assessment{}, ErrTimeout
}

// proposalPhase calls ProposeInitial on the first iteration (or right
// after a breakout), otherwise Refine with the previous iteration's
// distilled feedback, preceded by the breakout directive if one has been
// produced; a refinement that does not change prior.Details is a
// RefinementStalledError (§4.2.2).
func (s *Session) proposalPhase(ctx context.Context, prior Proposal, priorFeedback string, havePrior bool) (Proposal, error) {
	if !havePrior {
		return s.lead.ProposeInitial(ctx)
	}
	guidance := priorFeedback
	if s.directive != "" {
		guidance = s.directive + "\n" + priorFeedback
	}
	next, err := s.lead.Refine(ctx, prior, guidance)
	if err != nil {
		return Proposal{}, err
	}
	if reflect.DeepEqual(next.Details, prior.Details) {
		return Proposal{}, &RefinementStalledError{SessionID: s.ID}
	}
	return next, nil
}

// feedbackPhase gathers each panel member's feedback concurrently, then
// distils it into one summary (§4.2.2 step 3). errgroup bounds the
// fan-out and propagates the first error.
func (s *Session) feedbackPhase(ctx context.Context, proposal Proposal) ([]Feedback, string, error) {
	results := make([]Feedback, len(s.panel))
	g, gctx := errgroup.WithContext(ctx)
	for i, specialist := range s.panel {
		i, specialist := i, specialist
		g.Go(func() error {
			fb, err := specialist.GiveFeedback(gctx, proposal)
			if err != nil {
				return err
			}
			results[i] = fb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	distilled, err := s.distill.Distill(ctx, results)
	if err != nil {
		return nil, "", err
	}
	return results, distilled, nil
}

// applyBreakout summarises history into a single directive, clears
// per-iteration metadata, and resets the tracker (§4.2.2 step 1).
func (s *Session) applyBreakout(ctx context.Context) error {
	if s.breakout == nil {
		return &ConfigurationError{Field: "breakout", Reason: "progress plateaued but no breakout summarizer is configured"}
	}
	directive, err := s.breakout.Summarize(ctx, s.history)
	if err != nil {
		return err
	}
	s.directive = directive
	s.history = nil
	s.tracker.Reset()
	return nil
}

// History returns the completed iteration records so far.
func (s *Session) History() []IterationRecord { return s.history }
