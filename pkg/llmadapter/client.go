// Package llmadapter defines the external LLM adapter contract (§6.3) the
// core consumes but never implements: the core only ever talks to an
// llmadapter.Client interface, never a specific provider SDK. Grounded on
// the teacher's LLMClient interface (pkg/agent/llm_client.go) that
// GRPCLLMClient implemented, minus the gRPC transport (see DESIGN.md for
// why google.golang.org/grpc was dropped from this tree).
package llmadapter

import "context"

// Client is the two-method contract §6.3 requires of every LLM
// collaborator. The core never assumes a specific provider; adapters for
// concrete providers live outside this module.
type Client interface {
	// ProcessText sends free-form text to the model and returns its
	// free-form response.
	ProcessText(ctx context.Context, text string) (string, error)

	// GenerateStructuredResponse asks the model to produce JSON matching
	// the caller's intent, given a system and user prompt. The raw
	// decoded JSON is returned; callers validate it with Validator before
	// trusting any field (§6.3: "failed validation falls back to a
	// default response ... it never propagates as a hard failure").
	GenerateStructuredResponse(ctx context.Context, system, user string) (map[string]any, error)
}
