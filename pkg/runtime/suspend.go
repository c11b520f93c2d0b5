package runtime

import "fmt"

// StatusKind tags the three states a flow run can be in after Run or
// ResumeWithInput returns, mirroring the suspend/resume contract of
// §4.1.4.
type StatusKind int

const (
	StatusRunning StatusKind = iota
	StatusAwaitingInput
	StatusCompleted
)

// PendingRequest describes what a suspended run needs from its caller to
// resume: which block suspended, its type, and a payload holding the
// interpreter's most recent result at the moment of suspension, which
// the embedding application surfaces to whatever satisfies the request
// (an operator, an LLM provider, a sibling flow).
type PendingRequest struct {
	BlockID   string
	BlockType BlockType
	Payload   Value
}

// ExecutionStatus is the result of advancing a FlowRunner by one step.
// Exactly one of the three states holds; AwaitingInput carries the
// request, Completed carries the final Value.
type ExecutionStatus struct {
	Kind    StatusKind
	Pending PendingRequest
	Result  Value
}

func running() ExecutionStatus        { return ExecutionStatus{Kind: StatusRunning} }
func completed(v Value) ExecutionStatus { return ExecutionStatus{Kind: StatusCompleted, Result: v} }
func awaiting(p PendingRequest) ExecutionStatus {
	return ExecutionStatus{Kind: StatusAwaitingInput, Pending: p}
}

// FlowRunner executes a Flow block by block against a VM, suspending
// whenever it reaches a block whose effect requires something outside
// the VM (an agent/LLM/tool/workflow call, user input, or a parallel
// join). Resuming writes the caller-supplied value into a well-known
// variable before continuing, the same contract vm.rs uses for its
// AST-level suspension (§4.1.4): the resuming value becomes visible to
// subsequent bytecode as the "__resume" variable.
type FlowRunner struct {
	flow    *Flow
	vm      *VM
	current string
	done    bool
}

// NewFlowRunner constructs a runner positioned at flow's entry block. The
// flow must already have passed Validate.
func NewFlowRunner(flow *Flow, vm *VM) *FlowRunner {
	return &FlowRunner{flow: flow, vm: vm, current: flow.Entry}
}

const resumeVarName = "__resume"

// Run advances the flow until it completes, suspends, or errors.
func (r *FlowRunner) Run() (ExecutionStatus, error) {
	if r.done {
		return completed(r.vm.interp.Result()), nil
	}
	for {
		block, ok := r.flow.Blocks[r.current]
		if !ok {
			return ExecutionStatus{}, fmt.Errorf("flow %q: block %q not found", r.flow.ID, r.current)
		}

		switch block.Type {
		case BlockComputation:
			if err := r.vm.ExecuteWithFFI(block.Bytecode); err != nil {
				return ExecutionStatus{}, err
			}
			r.current = block.Next

		case BlockConditional:
			if err := r.vm.ExecuteWithFFI(block.Bytecode); err != nil {
				return ExecutionStatus{}, err
			}
			truthy, ok := r.vm.interp.Result().IsTruthy()
			if !ok {
				return ExecutionStatus{}, &TypeMismatchError{Expected: KindBoolean, Found: r.vm.interp.Result().Kind}
			}
			if truthy {
				r.current = block.NextTrue
			} else {
				r.current = block.NextFalse
			}

		case BlockTerminator:
			r.done = true
			return completed(r.vm.interp.Result()), nil

		case BlockAgentCall, BlockLLMCall, BlockToolCall, BlockWorkflowCall,
			BlockUserInput, BlockParallel, BlockJoin:
			return awaiting(PendingRequest{
				BlockID:   block.ID,
				BlockType: block.Type,
				Payload:   r.vm.interp.Result(),
			}), nil

		default:
			return ExecutionStatus{}, ErrUnsupportedOp
		}
	}
}

// ResumeWithInput binds value to the resume variable and continues
// execution from the block that last suspended. Calling it when the
// runner is not currently suspended on a block awaiting input is a
// caller error.
func (r *FlowRunner) ResumeWithInput(value Value) (ExecutionStatus, error) {
	if r.done {
		return completed(r.vm.interp.Result()), nil
	}
	block, ok := r.flow.Blocks[r.current]
	if !ok {
		return ExecutionStatus{}, fmt.Errorf("flow %q: block %q not found", r.flow.ID, r.current)
	}
	switch block.Type {
	case BlockAgentCall, BlockLLMCall, BlockToolCall, BlockWorkflowCall,
		BlockUserInput, BlockParallel, BlockJoin:
		r.vm.interp.vars[resumeVarName] = value
		r.current = block.Next
		return r.Run()
	default:
		return ExecutionStatus{}, fmt.Errorf("flow %q: block %q is not awaiting input", r.flow.ID, r.current)
	}
}
