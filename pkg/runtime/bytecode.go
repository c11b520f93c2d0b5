package runtime

import "encoding/binary"

// Assembler accumulates opcodes into a little-endian packed bytecode
// buffer (§6.2). It is a thin convenience used by tests, by the CLI
// (cmd/sleet) and by pkg/api's flow decoder to build programs without
// hand-rolling byte slices.
type Assembler struct {
	buf []byte
}

func NewAssembler() *Assembler { return &Assembler{} }

func (a *Assembler) op(op OpCode) *Assembler {
	a.buf = append(a.buf, byte(op))
	return a
}

func (a *Assembler) Add() *Assembler            { return a.op(OpAdd) }
func (a *Assembler) Subtract() *Assembler       { return a.op(OpSubtract) }
func (a *Assembler) Multiply() *Assembler       { return a.op(OpMultiply) }
func (a *Assembler) Divide() *Assembler         { return a.op(OpDivide) }
func (a *Assembler) Modulo() *Assembler         { return a.op(OpModulo) }
func (a *Assembler) Negate() *Assembler         { return a.op(OpNegate) }
func (a *Assembler) Equal() *Assembler          { return a.op(OpEqual) }
func (a *Assembler) NotEqual() *Assembler       { return a.op(OpNotEqual) }
func (a *Assembler) GreaterThan() *Assembler    { return a.op(OpGreaterThan) }
func (a *Assembler) LessThan() *Assembler       { return a.op(OpLessThan) }
func (a *Assembler) GreaterEqual() *Assembler   { return a.op(OpGreaterEqual) }
func (a *Assembler) LessEqual() *Assembler      { return a.op(OpLessEqual) }
func (a *Assembler) And() *Assembler            { return a.op(OpAnd) }
func (a *Assembler) Or() *Assembler             { return a.op(OpOr) }
func (a *Assembler) Not() *Assembler            { return a.op(OpNot) }
func (a *Assembler) Pop() *Assembler            { return a.op(OpPop) }
func (a *Assembler) Dup() *Assembler            { return a.op(OpDup) }
func (a *Assembler) Swap() *Assembler           { return a.op(OpSwap) }
func (a *Assembler) Halt() *Assembler           { return a.op(OpHalt) }

func (a *Assembler) Push(imm int32) *Assembler {
	a.op(OpPush)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(imm))
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *Assembler) Jump(target uint32) *Assembler {
	a.op(OpJump)
	a.writeU32(target)
	return a
}

func (a *Assembler) JumpIfTrue(target uint32) *Assembler {
	a.op(OpJumpIfTrue)
	a.writeU32(target)
	return a
}

func (a *Assembler) JumpIfFalse(target uint32) *Assembler {
	a.op(OpJumpIfFalse)
	a.writeU32(target)
	return a
}

func (a *Assembler) LoadVar(name string) *Assembler {
	a.op(OpLoadVar)
	a.writeString(name)
	return a
}

func (a *Assembler) StoreVar(name string) *Assembler {
	a.op(OpStoreVar)
	a.writeString(name)
	return a
}

func (a *Assembler) CallFfi(name string, argCount byte) *Assembler {
	a.op(OpCallFfi)
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(name)))
	a.buf = append(a.buf, lb[:]...)
	a.buf = append(a.buf, name...)
	a.buf = append(a.buf, argCount)
	return a
}

func (a *Assembler) writeU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.buf = append(a.buf, b[:]...)
}

func (a *Assembler) writeString(s string) {
	a.writeU32(uint32(len(s)))
	a.buf = append(a.buf, s...)
}

// Bytes returns the packed bytecode built so far.
func (a *Assembler) Bytes() []byte { return a.buf }

// instrLen returns the total encoded length (opcode byte + operands) of
// the instruction starting at bytecode[ip], or an error if ip points past
// a truncated operand. Jump/LoadVar/StoreVar operand widths follow §6.2:
// Jump family take a 4-byte absolute offset; LoadVar/StoreVar take a
// length-prefixed name exactly like CallFfi's name but with no trailing
// arg-count byte.
func instrLen(bytecode []byte, ip int) (int, error) {
	if ip >= len(bytecode) {
		return 0, ErrInvalidBytecode
	}
	op := OpCode(bytecode[ip])
	switch op {
	case OpPush, OpJump, OpJumpIfTrue, OpJumpIfFalse:
		if ip+5 > len(bytecode) {
			return 0, ErrInvalidBytecode
		}
		return 5, nil
	case OpLoadVar, OpStoreVar:
		if ip+5 > len(bytecode) {
			return 0, ErrInvalidBytecode
		}
		nameLen := int(binary.LittleEndian.Uint32(bytecode[ip+1 : ip+5]))
		total := 5 + nameLen
		if ip+total > len(bytecode) {
			return 0, ErrInvalidBytecode
		}
		return total, nil
	case OpCallFfi:
		if ip+5 > len(bytecode) {
			return 0, ErrInvalidBytecode
		}
		nameLen := int(binary.LittleEndian.Uint32(bytecode[ip+1 : ip+5]))
		total := 5 + nameLen + 1
		if ip+total > len(bytecode) {
			return 0, ErrInvalidBytecode
		}
		return total, nil
	default:
		if !op.Valid() {
			return 0, ErrUnsupportedOp
		}
		return 1, nil
	}
}

// bytecodeContainsFFI reports whether any CallFfi opcode appears in the
// program, deciding the interpreter/JIT/hybrid split in §4.1.2.
func bytecodeContainsFFI(bytecode []byte) bool {
	ip := 0
	for ip < len(bytecode) {
		n, err := instrLen(bytecode, ip)
		if err != nil {
			ip++
			continue
		}
		if OpCode(bytecode[ip]) == OpCallFfi {
			return true
		}
		ip += n
	}
	return false
}

// segmentKind distinguishes the two bytecode segment types produced by
// splitBytecodeForHybrid.
type segmentKind int

const (
	segComputational segmentKind = iota
	segFFI
)

type bytecodeSegment struct {
	kind segmentKind
	code []byte
}

// splitBytecodeForHybrid partitions bytecode into maximal contiguous runs
// of {computational, FFI} instructions, per §4.1.2 step 3.
func splitBytecodeForHybrid(bytecode []byte) ([]bytecodeSegment, error) {
	var segments []bytecodeSegment
	var current []byte
	inCompute := true
	ip := 0
	for ip < len(bytecode) {
		n, err := instrLen(bytecode, ip)
		if err != nil {
			current = append(current, bytecode[ip])
			ip++
			continue
		}
		isFFI := OpCode(bytecode[ip]) == OpCallFfi
		if isFFI && inCompute {
			if len(current) > 0 {
				segments = append(segments, bytecodeSegment{kind: segComputational, code: current})
				current = nil
			}
			inCompute = false
		} else if !isFFI && !inCompute {
			if len(current) > 0 {
				segments = append(segments, bytecodeSegment{kind: segFFI, code: current})
				current = nil
			}
			inCompute = true
		}
		current = append(current, bytecode[ip:ip+n]...)
		ip += n
	}
	if len(current) > 0 {
		if inCompute {
			segments = append(segments, bytecodeSegment{kind: segComputational, code: current})
		} else {
			segments = append(segments, bytecodeSegment{kind: segFFI, code: current})
		}
	}
	return segments, nil
}
