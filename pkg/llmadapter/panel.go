package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sleetrun/sleet/pkg/orchestration"
)

var proposalSchema = Schema{Fields: []FieldSpec{
	{Name: "summary", Kind: FieldString, Default: ""},
}}

var feedbackSchema = Schema{Fields: []FieldSpec{
	{Name: "content", Kind: FieldString, Default: ""},
}}

var distillSchema = Schema{Fields: []FieldSpec{
	{Name: "summary", Kind: FieldString, Default: ""},
}}

var scoreMin, scoreMax = 1.0, 10.0
var scoreSchema = Schema{Fields: []FieldSpec{
	{Name: "score", Kind: FieldInt, Default: int64(5), Min: &scoreMin, Max: &scoreMax},
}}

var breakoutSchema = Schema{Fields: []FieldSpec{
	{Name: "directive", Kind: FieldString, Default: "continue refining toward the stated goal"},
}}

// LeadSpecialist is the llmadapter-backed orchestration.LeadSpecialist:
// it asks the model for an initial proposal, then for refinements guided
// by distilled feedback, matching §4.2.2 steps 1-2. Grounded on the
// teacher's pkg/agent iteration/refine pattern (agent.go's
// ExecutionResult loop), adapted to the two-method planning-session
// contract instead of a tool-calling agent loop.
type LeadSpecialist struct {
	client  Client
	system  string
	goal    string
	proposeValidator *Validator
}

// NewLeadSpecialist constructs a LeadSpecialist that pursues goal.
func NewLeadSpecialist(client Client, goal string) *LeadSpecialist {
	return &LeadSpecialist{
		client:           client,
		system:           "You propose a working answer to the stated goal as JSON with a 'summary' field.",
		goal:             goal,
		proposeValidator: NewValidator(proposalSchema),
	}
}

var _ orchestration.LeadSpecialist = (*LeadSpecialist)(nil)

func (l *LeadSpecialist) ProposeInitial(ctx context.Context) (orchestration.Proposal, error) {
	raw, err := l.client.GenerateStructuredResponse(ctx, l.system, fmt.Sprintf("Goal: %s\nPropose an initial answer.", l.goal))
	if err != nil {
		return orchestration.Proposal{}, fmt.Errorf("llmadapter: propose initial: %w", err)
	}
	validated := l.proposeValidator.Validate(raw)
	return orchestration.Proposal{Summary: validated["summary"].(string), Details: validated}, nil
}

func (l *LeadSpecialist) Refine(ctx context.Context, prior orchestration.Proposal, distilledFeedback string) (orchestration.Proposal, error) {
	priorJSON, _ := json.Marshal(prior.Details)
	raw, err := l.client.GenerateStructuredResponse(ctx, l.system, fmt.Sprintf(
		"Goal: %s\nPrior proposal: %s\nFeedback: %s\nRefine the proposal to address the feedback.",
		l.goal, priorJSON, distilledFeedback))
	if err != nil {
		return orchestration.Proposal{}, fmt.Errorf("llmadapter: refine: %w", err)
	}
	validated := l.proposeValidator.Validate(raw)
	return orchestration.Proposal{Summary: validated["summary"].(string), Details: validated}, nil
}

// FeedbackSpecialist is one named panel member (§4.2.2 step 3).
type FeedbackSpecialist struct {
	client    Client
	name      string
	lens      string
	validator *Validator
}

// NewFeedbackSpecialist constructs a panel member named name that views
// proposals through lens (e.g. "security", "feasibility", "cost").
func NewFeedbackSpecialist(client Client, name, lens string) *FeedbackSpecialist {
	return &FeedbackSpecialist{
		client:    client,
		name:      name,
		lens:      lens,
		validator: NewValidator(feedbackSchema),
	}
}

var _ orchestration.FeedbackSpecialist = (*FeedbackSpecialist)(nil)

func (f *FeedbackSpecialist) Name() string { return f.name }

func (f *FeedbackSpecialist) GiveFeedback(ctx context.Context, proposal orchestration.Proposal) (orchestration.Feedback, error) {
	raw, err := f.client.GenerateStructuredResponse(ctx,
		fmt.Sprintf("You critique proposals through a %s lens. Respond as JSON with a 'content' field.", f.lens),
		fmt.Sprintf("Proposal: %s", proposal.Summary))
	if err != nil {
		return orchestration.Feedback{}, fmt.Errorf("llmadapter: give feedback: %w", err)
	}
	validated := f.validator.Validate(raw)
	return orchestration.Feedback{From: f.name, Content: validated["content"].(string)}, nil
}

// Distiller merges a feedback panel's reactions into one prioritised
// directive (§4.2.2 step 3).
type Distiller struct {
	client    Client
	validator *Validator
}

func NewDistiller(client Client) *Distiller {
	return &Distiller{client: client, validator: NewValidator(distillSchema)}
}

var _ orchestration.Distiller = (*Distiller)(nil)

func (d *Distiller) Distill(ctx context.Context, feedback []orchestration.Feedback) (string, error) {
	raw, err := d.client.GenerateStructuredResponse(ctx,
		"Merge the panel's feedback into one prioritised paragraph as JSON with a 'summary' field.",
		fmt.Sprintf("Feedback: %+v", feedback))
	if err != nil {
		return "", fmt.Errorf("llmadapter: distill: %w", err)
	}
	validated := d.validator.Validate(raw)
	return validated["summary"].(string), nil
}

// Scorer compares consecutive proposals and returns a 1-10 progress
// score (§4.2.2 step 5).
type Scorer struct {
	client    Client
	validator *Validator
}

func NewScorer(client Client) *Scorer {
	return &Scorer{client: client, validator: NewValidator(scoreSchema)}
}

var _ orchestration.Scorer = (*Scorer)(nil)

func (s *Scorer) Score(ctx context.Context, current, previous orchestration.Proposal, distilledFeedback string) (int, error) {
	raw, err := s.client.GenerateStructuredResponse(ctx,
		"Score how much progress the current proposal makes over the previous one, 1-10, as JSON with a 'score' field.",
		fmt.Sprintf("Previous: %s\nCurrent: %s\nFeedback: %s", previous.Summary, current.Summary, distilledFeedback))
	if err != nil {
		return 0, fmt.Errorf("llmadapter: score: %w", err)
	}
	validated := s.validator.Validate(raw)
	score64, _ := validated["score"].(int64)
	return int(score64), nil
}

// BreakoutSummarizer compresses plateaued iteration history into a
// single directive (§4.2.2 step 1).
type BreakoutSummarizer struct {
	client    Client
	validator *Validator
}

func NewBreakoutSummarizer(client Client) *BreakoutSummarizer {
	return &BreakoutSummarizer{client: client, validator: NewValidator(breakoutSchema)}
}

var _ orchestration.BreakoutSummarizer = (*BreakoutSummarizer)(nil)

func (b *BreakoutSummarizer) Summarize(ctx context.Context, history []orchestration.IterationRecord) (string, error) {
	raw, err := b.client.GenerateStructuredResponse(ctx,
		"The session has plateaued. Summarise the history into one directive that breaks the stall, as JSON with a 'directive' field.",
		fmt.Sprintf("History: %+v", history))
	if err != nil {
		return "", fmt.Errorf("llmadapter: summarize breakout: %w", err)
	}
	validated := b.validator.Validate(raw)
	return validated["directive"].(string), nil
}
