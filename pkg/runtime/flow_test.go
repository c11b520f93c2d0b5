package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleBytecode() []byte {
	return NewAssembler().Push(1).Halt().Bytes()
}

func TestFlow_ValidateAcceptsWellFormedFlow(t *testing.T) {
	f := NewFlow("f1", "start")
	f.AddBlock(&Block{ID: "start", Type: BlockComputation, Bytecode: simpleBytecode(), Next: "end"})
	f.AddBlock(&Block{ID: "end", Type: BlockTerminator})

	assert.NoError(t, f.Validate())
}

func TestFlow_ValidateRejectsMissingEntry(t *testing.T) {
	f := NewFlow("f1", "nope")
	f.AddBlock(&Block{ID: "end", Type: BlockTerminator})

	err := f.Validate()
	require.Error(t, err)
	var ve *FlowValidationError
	require.ErrorAs(t, err, &ve)
}

func TestFlow_ValidateRejectsDanglingReference(t *testing.T) {
	f := NewFlow("f1", "start")
	f.AddBlock(&Block{ID: "start", Type: BlockComputation, Bytecode: simpleBytecode(), Next: "missing"})

	err := f.Validate()
	require.Error(t, err)
}

func TestFlow_ValidateRejectsUnreachableBlock(t *testing.T) {
	f := NewFlow("f1", "start")
	f.AddBlock(&Block{ID: "start", Type: BlockComputation, Bytecode: simpleBytecode(), Next: "end"})
	f.AddBlock(&Block{ID: "end", Type: BlockTerminator})
	f.AddBlock(&Block{ID: "orphan", Type: BlockTerminator})

	err := f.Validate()
	require.Error(t, err)
}

func TestFlow_ValidateRejectsNoReachableTerminator(t *testing.T) {
	f := NewFlow("f1", "start")
	f.AddBlock(&Block{ID: "start", Type: BlockComputation, Bytecode: simpleBytecode(), Next: "loop"})
	f.AddBlock(&Block{ID: "loop", Type: BlockComputation, Bytecode: simpleBytecode(), Next: "start"})

	err := f.Validate()
	require.Error(t, err)
}

func TestFlow_ValidateRejectsConditionalMissingBranch(t *testing.T) {
	f := NewFlow("f1", "cond")
	f.AddBlock(&Block{ID: "cond", Type: BlockConditional, Bytecode: simpleBytecode(), NextTrue: "end"})
	f.AddBlock(&Block{ID: "end", Type: BlockTerminator})

	err := f.Validate()
	require.Error(t, err)
}

func TestFlowRunner_RunsToCompletion(t *testing.T) {
	f := NewFlow("f1", "start")
	f.AddBlock(&Block{
		ID:       "start",
		Type:     BlockComputation,
		Bytecode: NewAssembler().Push(2).Push(3).Add().Halt().Bytes(),
		Next:     "end",
	})
	f.AddBlock(&Block{ID: "end", Type: BlockTerminator})
	require.NoError(t, f.Validate())

	vm := NewVM(100, nil)
	runner := NewFlowRunner(f, vm)
	status, err := runner.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Kind)
	assert.Equal(t, Integer(5), status.Result)
}

func TestFlowRunner_ConditionalBranching(t *testing.T) {
	f := NewFlow("f1", "cond")
	f.AddBlock(&Block{
		ID:        "cond",
		Type:      BlockConditional,
		Bytecode:  NewAssembler().Push(5).Push(3).GreaterThan().Halt().Bytes(),
		NextTrue:  "yes",
		NextFalse: "no",
	})
	f.AddBlock(&Block{ID: "yes", Type: BlockComputation, Bytecode: NewAssembler().Push(1).Halt().Bytes(), Next: "end"})
	f.AddBlock(&Block{ID: "no", Type: BlockComputation, Bytecode: NewAssembler().Push(0).Halt().Bytes(), Next: "end"})
	f.AddBlock(&Block{ID: "end", Type: BlockTerminator})
	require.NoError(t, f.Validate())

	vm := NewVM(100, nil)
	runner := NewFlowRunner(f, vm)
	status, err := runner.Run()
	require.NoError(t, err)
	assert.Equal(t, Integer(1), status.Result)
}

func TestFlowRunner_SuspendsAndResumesOnToolCall(t *testing.T) {
	f := NewFlow("f1", "call")
	f.AddBlock(&Block{ID: "call", Type: BlockToolCall, Next: "after"})
	f.AddBlock(&Block{
		ID:       "after",
		Type:     BlockComputation,
		Bytecode: NewAssembler().LoadVar(resumeVarName).Halt().Bytes(),
		Next:     "end",
	})
	f.AddBlock(&Block{ID: "end", Type: BlockTerminator})
	require.NoError(t, f.Validate())

	vm := NewVM(100, nil)
	runner := NewFlowRunner(f, vm)

	status, err := runner.Run()
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingInput, status.Kind)
	assert.Equal(t, BlockToolCall, status.Pending.BlockType)
	assert.Equal(t, "call", status.Pending.BlockID)

	status, err = runner.ResumeWithInput(Integer(99))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Kind)
	assert.Equal(t, Integer(99), status.Result)
}
