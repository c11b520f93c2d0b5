package runtime

import "fmt"

// OpCode is a single-byte bytecode instruction tag (§6.2).
type OpCode byte

const (
	OpAdd OpCode = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpNegate
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpLessThan
	OpGreaterEqual
	OpLessEqual
	OpAnd
	OpOr
	OpNot
	OpPush
	OpPop
	OpDup
	OpSwap
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse
	OpLoadVar
	OpStoreVar
	OpCallFfi
	OpHalt
)

var opcodeNames = [...]string{
	OpAdd: "Add", OpSubtract: "Subtract", OpMultiply: "Multiply", OpDivide: "Divide",
	OpModulo: "Modulo", OpNegate: "Negate", OpEqual: "Equal", OpNotEqual: "NotEqual",
	OpGreaterThan: "GreaterThan", OpLessThan: "LessThan", OpGreaterEqual: "GreaterEqual",
	OpLessEqual: "LessEqual", OpAnd: "And", OpOr: "Or", OpNot: "Not", OpPush: "Push",
	OpPop: "Pop", OpDup: "Dup", OpSwap: "Swap", OpJump: "Jump", OpJumpIfTrue: "JumpIfTrue",
	OpJumpIfFalse: "JumpIfFalse", OpLoadVar: "LoadVar", OpStoreVar: "StoreVar",
	OpCallFfi: "CallFfi", OpHalt: "Halt",
}

func (op OpCode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("OpCode(%d)", byte(op))
}

// Valid reports whether b decodes to a known opcode.
func (op OpCode) Valid() bool {
	return op <= OpHalt
}

// isComparison reports whether op is one of the six comparison opcodes
// whose JIT-path integer 0/1 results must surface to the interpreter as
// Boolean (§4.1.3).
func (op OpCode) isComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
		return true
	default:
		return false
	}
}
