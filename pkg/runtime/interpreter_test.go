package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInterpreter_ArithmeticRoundTrip covers spec scenario S1: push two
// integers, add, halt, and confirm the result and gas consumption.
func TestInterpreter_ArithmeticRoundTrip(t *testing.T) {
	code := NewAssembler().Push(2).Push(3).Add().Halt().Bytes()
	in := NewInterpreter(100)
	err := in.ExecuteBytecode(code)
	require.NoError(t, err)
	assert.Equal(t, Integer(5), in.Result())
	assert.Equal(t, uint64(96), in.Gas())
}

// TestInterpreter_ComparisonProducesBoolean covers spec scenario S2.
func TestInterpreter_ComparisonProducesBoolean(t *testing.T) {
	code := NewAssembler().Push(5).Push(3).GreaterThan().Halt().Bytes()
	in := NewInterpreter(100)
	require.NoError(t, in.ExecuteBytecode(code))
	assert.Equal(t, Boolean(true), in.Result())
}

func TestInterpreter_DivisionByZero(t *testing.T) {
	code := NewAssembler().Push(1).Push(0).Divide().Halt().Bytes()
	in := NewInterpreter(100)
	err := in.ExecuteBytecode(code)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestInterpreter_ModuloByZero(t *testing.T) {
	code := NewAssembler().Push(1).Push(0).Modulo().Halt().Bytes()
	in := NewInterpreter(100)
	err := in.ExecuteBytecode(code)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestInterpreter_OutOfGas(t *testing.T) {
	code := NewAssembler().Push(1).Push(2).Add().Halt().Bytes()
	in := NewInterpreter(2)
	err := in.ExecuteBytecode(code)
	assert.ErrorIs(t, err, ErrOutOfGas)
}

func TestInterpreter_StackUnderflow(t *testing.T) {
	code := NewAssembler().Add().Halt().Bytes()
	in := NewInterpreter(100)
	err := in.ExecuteBytecode(code)
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func TestInterpreter_TypeMismatch(t *testing.T) {
	code := NewAssembler().Push(1).Not().Halt().Bytes()
	in := NewInterpreter(100)
	err := in.ExecuteBytecode(code)
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, KindBoolean, tm.Expected)
	assert.Equal(t, KindInteger, tm.Found)
}

func TestInterpreter_HaltWithEmptyStackWritesZero(t *testing.T) {
	code := NewAssembler().Halt().Bytes()
	in := NewInterpreter(100)
	require.NoError(t, in.ExecuteBytecode(code))
	assert.Equal(t, Integer(0), in.Result())
}

func TestInterpreter_LoadUnboundVarPushesNull(t *testing.T) {
	code := NewAssembler().LoadVar("missing").Halt().Bytes()
	in := NewInterpreter(100)
	require.NoError(t, in.ExecuteBytecode(code))
	assert.Equal(t, Null, in.Result())
}

func TestInterpreter_StoreThenLoadVar(t *testing.T) {
	code := NewAssembler().Push(7).StoreVar("x").LoadVar("x").Halt().Bytes()
	in := NewInterpreter(100)
	require.NoError(t, in.ExecuteBytecode(code))
	assert.Equal(t, Integer(7), in.Result())
}

func TestInterpreter_JumpSkipsInstructions(t *testing.T) {
	const jumpInstrLen, pushInstrLen = 5, 5
	target := uint32(jumpInstrLen + pushInstrLen) // lands past the skipped Push(1)

	asm := NewAssembler()
	asm.Jump(target)
	asm.Push(1) // skipped
	asm.Push(2)
	asm.Halt()
	code := asm.Bytes()

	in := NewInterpreter(100)
	require.NoError(t, in.ExecuteBytecode(code))
	assert.Equal(t, Integer(2), in.Result())
}

// TestInterpreter_FFIHybrid covers spec scenario S3: a CallFfi opcode
// interleaved with arithmetic.
func TestInterpreter_FFIHybrid(t *testing.T) {
	reg := NewFfiRegistry()
	reg.Register("double", func(args []Value, _ map[string]Value) (Value, error) {
		return Integer(args[0].Int * 2), nil
	})
	code := NewAssembler().Push(21).CallFfi("double", 1).Halt().Bytes()
	in := NewInterpreter(100)
	require.NoError(t, in.ExecuteBytecodeWithFFI(code, reg))
	assert.Equal(t, Integer(42), in.Result())
}

func TestInterpreter_FFINotFound(t *testing.T) {
	reg := NewFfiRegistry()
	code := NewAssembler().Push(1).CallFfi("missing", 1).Halt().Bytes()
	in := NewInterpreter(100)
	err := in.ExecuteBytecodeWithFFI(code, reg)
	var fe *FfiNotFoundError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "missing", fe.Name)
}

func TestInterpreter_SwapAndDup(t *testing.T) {
	code := NewAssembler().Push(1).Push(2).Swap().Dup().Add().Halt().Bytes()
	in := NewInterpreter(100)
	require.NoError(t, in.ExecuteBytecode(code))
	// stack after Push,Push: [1,2]; Swap: [2,1]; Dup: [2,1,1]; Add pops 1,1 -> 2: [2,2]
	assert.Equal(t, Integer(2), in.Result())
}
