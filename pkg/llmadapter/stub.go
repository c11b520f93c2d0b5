package llmadapter

import (
	"context"
	"fmt"
	"strings"
)

// DeterministicClient is a network-free Client used by the `generate` CLI
// subcommand (§6.5): it never calls out to a
// real provider, instead returning canned, deterministic responses so the
// orchestration/llmadapter wiring can be exercised end to end without
// external credentials. It is not a production provider adapter — real
// ones live outside this module, per the Client interface's doc comment.
//
// It recognises an Arbiter's assessment prompt by a fixed marker phrase
// in the system prompt (see assessmentMarker) and only starts reporting
// goal_achieved=true once that prompt has been seen more than Iterations
// times, so a caller can deterministically demo a planning session
// converging after a chosen number of iterations (S6). Every other
// structured-response call (propose/refine/feedback/distill/score/
// breakout) returns a response that varies with the call count, so
// successive proposals are never byte-identical — a flat response would
// trip the planning session's stalled-refinement check.
type DeterministicClient struct {
	Iterations int

	calls       int
	assessCalls int
}

var _ Client = (*DeterministicClient)(nil)

// assessmentMarker must appear in the system prompt passed to
// llmadapter.NewArbiter for DeterministicClient to recognise assessment
// calls distinctly from proposal/feedback/distill/score/breakout calls.
const assessmentMarker = "goal has been achieved"

func (c *DeterministicClient) ProcessText(_ context.Context, text string) (string, error) {
	return fmt.Sprintf("processed: %s", text), nil
}

func (c *DeterministicClient) GenerateStructuredResponse(_ context.Context, system, _ string) (map[string]any, error) {
	c.calls++
	resp := map[string]any{
		"summary":   fmt.Sprintf("proposal revision %d", c.calls),
		"content":   fmt.Sprintf("panel note %d", c.calls),
		"directive": "focus on the unresolved requirement from the last round",
		"score":     int64(6),
	}

	if strings.Contains(system, assessmentMarker) {
		c.assessCalls++
		achieved := c.assessCalls > c.Iterations
		resp["goal_achieved"] = achieved
		resp["confidence"] = confidenceForCall(c.assessCalls, achieved)
		resp["reasoning"] = fmt.Sprintf("deterministic assessment %d of at most %d", c.assessCalls, c.Iterations+1)
		resp["missing_elements"] = []any{}
	}

	return resp, nil
}

func confidenceForCall(call int, achieved bool) float64 {
	if achieved {
		return 0.9
	}
	return 0.4 + 0.1*float64(call)
}
