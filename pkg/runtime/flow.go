package runtime

import "fmt"

// BlockType enumerates the ten flow block kinds from §3.1. Blocks other
// than Computation carry payloads that the higher-level suspendable
// interpreter (suspend.go) interprets; the VM itself only ever executes
// Computation bytecode directly.
type BlockType int

const (
	BlockComputation BlockType = iota
	BlockConditional
	BlockAgentCall
	BlockLLMCall
	BlockToolCall
	BlockWorkflowCall
	BlockUserInput
	BlockParallel
	BlockJoin
	BlockTerminator
)

func (t BlockType) String() string {
	names := [...]string{
		"Computation", "Conditional", "AgentCall", "LLMCall", "ToolCall",
		"WorkflowCall", "UserInput", "Parallel", "Join", "Terminator",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// Block is one node of a Flow graph. Next holds the unconditional
// successor for block types with a single continuation; Conditional
// blocks instead use NextTrue/NextFalse, and Terminator blocks have no
// successor at all.
type Block struct {
	ID        string
	Type      BlockType
	Bytecode  []byte
	Next      string
	NextTrue  string
	NextFalse string

	// Properties carries block-kind-specific payload decoded from the
	// §6.1 wire format that doesn't fit the VM's bytecode model directly
	// (a Display block's message, an ExternalData block's URL and JSON
	// pointer, a suspension block's agent/LLM/tool metadata). Neither the
	// VM nor the FlowRunner reads this field; the wire-format decoder
	// (pkg/api) fills it.
	Properties map[string]any
}

// Flow is a named, directed graph of Blocks with a single entry point,
// per §3.1. Flows are validated once at registration time and then
// executed (and possibly suspended/resumed) many times.
type Flow struct {
	ID      string
	Entry   string
	Blocks  map[string]*Block
}

// NewFlow constructs an empty flow ready to have blocks added.
func NewFlow(id, entry string) *Flow {
	return &Flow{ID: id, Entry: entry, Blocks: make(map[string]*Block)}
}

// AddBlock inserts b, keyed by b.ID. A duplicate ID is a caller error
// surfaced at Validate time rather than here, so callers can build flows
// out of order.
func (f *Flow) AddBlock(b *Block) { f.Blocks[b.ID] = b }

// FlowValidationError reports why Validate rejected a flow.
type FlowValidationError struct {
	FlowID string
	Reason string
}

func (e *FlowValidationError) Error() string {
	return fmt.Sprintf("flow %q invalid: %s", e.FlowID, e.Reason)
}

// Validate checks the three structural invariants from §3.1:
//  1. every block referenced by Next/NextTrue/NextFalse/Entry exists;
//  2. at least one Terminator block is reachable from Entry (a flow with
//     no reachable terminator can never complete);
//  3. every block is reachable from Entry (no orphaned blocks).
func (f *Flow) Validate() error {
	if _, ok := f.Blocks[f.Entry]; !ok {
		return &FlowValidationError{FlowID: f.ID, Reason: fmt.Sprintf("entry block %q does not exist", f.Entry)}
	}

	for id, b := range f.Blocks {
		for _, ref := range []string{b.Next, b.NextTrue, b.NextFalse} {
			if ref == "" {
				continue
			}
			if _, ok := f.Blocks[ref]; !ok {
				return &FlowValidationError{FlowID: f.ID, Reason: fmt.Sprintf("block %q references missing block %q", id, ref)}
			}
		}
		if b.Type == BlockConditional && (b.NextTrue == "" || b.NextFalse == "") {
			return &FlowValidationError{FlowID: f.ID, Reason: fmt.Sprintf("conditional block %q missing a branch target", id)}
		}
		if b.Type != BlockTerminator && b.Type != BlockConditional && b.Next == "" {
			return &FlowValidationError{FlowID: f.ID, Reason: fmt.Sprintf("block %q has no successor", id)}
		}
	}

	reached := f.reachableFrom(f.Entry)
	if len(reached) != len(f.Blocks) {
		for id := range f.Blocks {
			if !reached[id] {
				return &FlowValidationError{FlowID: f.ID, Reason: fmt.Sprintf("block %q is unreachable from entry", id)}
			}
		}
	}

	hasTerminator := false
	for id := range reached {
		if b, ok := f.Blocks[id]; ok && b.Type == BlockTerminator {
			hasTerminator = true
			break
		}
	}
	if !hasTerminator {
		return &FlowValidationError{FlowID: f.ID, Reason: "no terminator block is reachable from entry"}
	}
	return nil
}

// reachableFrom performs a breadth-first traversal of the flow graph
// starting at id, returning the set of reached block IDs (including id
// itself, if present).
func (f *Flow) reachableFrom(id string) map[string]bool {
	reached := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if reached[cur] {
			continue
		}
		reached[cur] = true
		b, ok := f.Blocks[cur]
		if !ok {
			continue
		}
		for _, next := range []string{b.Next, b.NextTrue, b.NextFalse} {
			if next != "" && !reached[next] {
				queue = append(queue, next)
			}
		}
	}
	return reached
}
