package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sleetrun/sleet/pkg/orchestration"
)

// assessmentSchema is the structured-response schema for an arbiter
// assessment (§4.2.2 step 4): required fields with defaults, confidence
// clamped to [0,1].
var assessmentSchema = Schema{Fields: []FieldSpec{
	{Name: "goal_achieved", Kind: FieldBool, Required: true, Default: false},
	ConfidenceField("confidence", 0),
	{Name: "reasoning", Kind: FieldString, Required: false, Default: ""},
}}

// Arbiter adapts a Client into orchestration.Arbiter, driving the
// model with a structured-response prompt and passing the result
// through Validator before handing it to the planning session. This is
// the concrete collaborator the orchestration package's Arbiter
// interface is written against; orchestration itself has no dependency
// on llmadapter or any provider.
type Arbiter struct {
	client    Client
	validator *Validator
	system    string
}

// NewArbiter builds an Arbiter that prompts client with system as the
// fixed system prompt on every assessment call.
func NewArbiter(client Client, system string) *Arbiter {
	return &Arbiter{client: client, validator: NewValidator(assessmentSchema), system: system}
}

// Assess implements orchestration.Arbiter.
func (a *Arbiter) Assess(ctx context.Context, proposal orchestration.Proposal, distilledFeedback string) (orchestration.Assessment, error) {
	details, err := json.Marshal(proposal.Details)
	if err != nil {
		return orchestration.Assessment{}, fmt.Errorf("llmadapter: marshal proposal details: %w", err)
	}

	user := fmt.Sprintf(
		"Proposal summary: %s\nProposal details: %s\nDistilled feedback: %s\n"+
			"Respond with JSON: {\"goal_achieved\": bool, \"confidence\": number in [0,1], \"reasoning\": string, \"missing_elements\": [string]}",
		proposal.Summary, string(details), distilledFeedback,
	)

	raw, err := a.client.GenerateStructuredResponse(ctx, a.system, user)
	if err != nil {
		return orchestration.Assessment{}, fmt.Errorf("llmadapter: generate assessment: %w", err)
	}

	validated := a.validator.Validate(raw)

	var missing []string
	if rawMissing, ok := raw["missing_elements"].([]any); ok {
		for _, m := range rawMissing {
			if s, ok := m.(string); ok {
				missing = append(missing, s)
			}
		}
	}

	return orchestration.Assessment{
		GoalAchieved:    validated["goal_achieved"].(bool),
		Confidence:      validated["confidence"].(float64),
		Reasoning:       validated["reasoning"].(string),
		MissingElements: missing,
	}, nil
}
