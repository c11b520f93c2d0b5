package api

import (
	"encoding/base64"
	"fmt"

	"github.com/sleetrun/sleet/pkg/runtime"
)

// FlowDefinition is the §6.1 wire format: a flow ID, a start block ID,
// and a flat array of typed blocks keyed by their own ID.
type FlowDefinition struct {
	ID           string          `json:"id"`
	StartBlockID string          `json:"start_block_id"`
	Blocks       []BlockWireType `json:"blocks"`
}

// BlockWireType is one block in the wire format: the closed §3.1 type
// tag plus a property bag whose required keys depend on Type.
type BlockWireType struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// wireTypes is the closed set of §3.1 block type tags, used both to
// validate incoming definitions and to render the "did you mean"
// suggestion §6.1 requires for unknown types.
var wireTypes = []string{
	"Display", "Input", "Conditional", "Compute", "GoTo",
	"ExternalData", "AgentInteraction", "LLMProcessing",
	"TaskExecution", "WorkflowInvocation",
}

// DefinitionError is a validation error on the wire format itself (§6.1:
// "unknown types and unknown required keys are validation errors with a
// human-readable suggestion"), distinct from runtime.FlowValidationError
// which reports graph-structural problems after decoding succeeds.
type DefinitionError struct {
	BlockID string
	Reason  string
}

func (e *DefinitionError) Error() string {
	if e.BlockID == "" {
		return fmt.Sprintf("flow definition invalid: %s", e.Reason)
	}
	return fmt.Sprintf("flow definition invalid: block %q: %s", e.BlockID, e.Reason)
}

// requiredProps names the property keys §3.1 requires per wire type,
// beyond the universal id/type/properties envelope.
var requiredProps = map[string][]string{
	"Display":            {"message"},
	"Input":              {},
	"Conditional":        {"expression_bytecode", "true_block", "false_block"},
	"Compute":            {"expression_bytecode", "output_key"},
	"GoTo":               {"target"},
	"ExternalData":       {"url", "json_pointer", "next_block"},
	"AgentInteraction":   {"agent_id", "prompt"},
	"LLMProcessing":      {"prompt"},
	"TaskExecution":      {"next_block"},
	"WorkflowInvocation": {"workflow_id", "next_block"},
}

// DecodeFlowDefinition translates a §6.1 wire-format FlowDefinition into
// a runtime.Flow, validating block types and required properties before
// handing the result to runtime.Flow.Validate for the graph-structural
// checks (§3.1's reachability/reference/terminator invariants).
//
// Expressions (Conditional/Compute) are carried as pre-assembled
// bytecode (base64 in "expression_bytecode") rather than a source
// expression language: spec §3.1/§6.2 define the bytecode format but no
// expression grammar to compile from, so the wire format accepts
// bytecode the caller already assembled with pkg/runtime.Assembler.
func DecodeFlowDefinition(def FlowDefinition) (*runtime.Flow, error) {
	if def.ID == "" {
		return nil, &DefinitionError{Reason: "missing flow id"}
	}
	if def.StartBlockID == "" {
		return nil, &DefinitionError{Reason: "missing start_block_id"}
	}

	flow := runtime.NewFlow(def.ID, def.StartBlockID)
	sawCompute := false
	sawDefault := false

	for _, wb := range def.Blocks {
		if wb.ID == "default" {
			sawDefault = true
		}
		if wb.Type == "Compute" {
			sawCompute = true
		}
		block, err := decodeBlock(wb)
		if err != nil {
			return nil, err
		}
		flow.AddBlock(block)
	}

	if sawCompute && !sawDefault {
		return nil, &DefinitionError{Reason: `flow contains Compute blocks but defines no "default" terminator`}
	}

	if err := flow.Validate(); err != nil {
		return nil, err
	}
	return flow, nil
}

func decodeBlock(wb BlockWireType) (*runtime.Block, error) {
	if wb.ID == "" {
		return nil, &DefinitionError{Reason: "block missing id"}
	}
	for _, req := range requiredProps[wb.Type] {
		if _, ok := wb.Properties[req]; !ok {
			return nil, &DefinitionError{BlockID: wb.ID, Reason: fmt.Sprintf("missing required property %q for type %q", req, wb.Type)}
		}
	}

	b := &runtime.Block{ID: wb.ID, Properties: wb.Properties}

	switch wb.Type {
	case "Display":
		b.Type = runtime.BlockComputation
		b.Bytecode = haltBytecode()
		b.Next = stringProp(wb.Properties, "next_block", "default")
	case "Input":
		b.Type = runtime.BlockUserInput
		b.Next = stringProp(wb.Properties, "next_block", "default")
	case "Conditional":
		b.Type = runtime.BlockConditional
		bytecode, err := decodeBytecodeProp(wb)
		if err != nil {
			return nil, err
		}
		b.Bytecode = bytecode
		b.NextTrue = stringProp(wb.Properties, "true_block", "")
		b.NextFalse = stringProp(wb.Properties, "false_block", "")
	case "Compute":
		b.Type = runtime.BlockComputation
		bytecode, err := decodeBytecodeProp(wb)
		if err != nil {
			return nil, err
		}
		b.Bytecode = bytecode
		b.Next = stringProp(wb.Properties, "next_block", "default")
	case "GoTo":
		b.Type = runtime.BlockComputation
		b.Bytecode = haltBytecode()
		b.Next = stringProp(wb.Properties, "target", "")
	case "ExternalData":
		b.Type = runtime.BlockComputation
		b.Bytecode = haltBytecode()
		b.Next = stringProp(wb.Properties, "next_block", "")
	case "AgentInteraction":
		b.Type = runtime.BlockAgentCall
		b.Next = stringProp(wb.Properties, "next_block", "default")
	case "LLMProcessing":
		b.Type = runtime.BlockLLMCall
		b.Next = stringProp(wb.Properties, "next_block", "default")
	case "TaskExecution":
		b.Type = runtime.BlockToolCall
		b.Bytecode = haltBytecode()
		b.Next = stringProp(wb.Properties, "next_block", "")
	case "WorkflowInvocation":
		b.Type = runtime.BlockWorkflowCall
		b.Next = stringProp(wb.Properties, "next_block", "")
	default:
		return nil, &DefinitionError{BlockID: wb.ID, Reason: fmt.Sprintf("unknown block type %q (expected one of %v)", wb.Type, wireTypes)}
	}

	if wb.ID == "default" {
		b.Type = runtime.BlockTerminator
		b.Next, b.NextTrue, b.NextFalse = "", "", ""
	}

	return b, nil
}

func decodeBytecodeProp(wb BlockWireType) ([]byte, error) {
	raw, _ := wb.Properties["expression_bytecode"].(string)
	if raw == "" {
		return nil, &DefinitionError{BlockID: wb.ID, Reason: "expression_bytecode must be a non-empty base64 string"}
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, &DefinitionError{BlockID: wb.ID, Reason: "expression_bytecode is not valid base64"}
	}
	return decoded, nil
}

func stringProp(props map[string]any, key, def string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return def
}

func haltBytecode() []byte {
	return runtime.NewAssembler().Push(0).Halt().Bytes()
}
