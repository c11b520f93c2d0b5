package runtime

import "encoding/binary"

// MaxStackDepth bounds the operand stack; exceeding it is ErrStackOverflow.
const MaxStackDepth = 1 << 16

// Interpreter owns the operand stack, the named-variable map, and the gas
// counter described in §4.1.1. A single Interpreter is reused across
// execute() calls within one VM so that variable bindings and suspension
// state persist across suspension/resume cycles.
type Interpreter struct {
	stack   []Value
	vars    map[string]Value
	gas     uint64
	result  Value
}

// NewInterpreter constructs an interpreter with the given gas budget.
func NewInterpreter(gasLimit uint64) *Interpreter {
	return &Interpreter{
		stack: make([]Value, 0, 64),
		vars:  make(map[string]Value),
		gas:   gasLimit,
	}
}

func (in *Interpreter) Gas() uint64              { return in.gas }
func (in *Interpreter) SetGas(g uint64)          { in.gas = g }
func (in *Interpreter) Stack() []Value           { return in.stack }
func (in *Interpreter) Variables() map[string]Value { return in.vars }
func (in *Interpreter) Result() Value            { return in.result }

func (in *Interpreter) ClearStack() { in.stack = in.stack[:0] }

func (in *Interpreter) PushValue(v Value) { in.stack = append(in.stack, v) }

func (in *Interpreter) pop() (Value, error) {
	if len(in.stack) == 0 {
		return Value{}, ErrStackUnderflow
	}
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return v, nil
}

func (in *Interpreter) push(v Value) error {
	if len(in.stack) >= MaxStackDepth {
		return ErrStackOverflow
	}
	in.stack = append(in.stack, v)
	return nil
}

func (in *Interpreter) consumeGas() error {
	if in.gas == 0 {
		return ErrOutOfGas
	}
	in.gas--
	return nil
}

func (in *Interpreter) popInt() (int64, error) {
	v, err := in.pop()
	if err != nil {
		return 0, err
	}
	if v.Kind != KindInteger {
		return 0, newTypeMismatch(KindInteger, v.Kind)
	}
	return v.Int, nil
}

func (in *Interpreter) popBool() (bool, error) {
	v, err := in.pop()
	if err != nil {
		return false, err
	}
	if v.Kind != KindBoolean {
		return false, newTypeMismatch(KindBoolean, v.Kind)
	}
	return v.Bool, nil
}

// ExecuteBytecode runs bytecode with no FFI registry available; a CallFfi
// opcode encountered here fails with ErrFfiNotFound.
func (in *Interpreter) ExecuteBytecode(bytecode []byte) error {
	return in.ExecuteBytecodeWithFFI(bytecode, nil)
}

// ExecuteBytecodeWithFFI runs bytecode to completion (Halt), gas exhaustion,
// or a fatal error. ffiRegistry may be nil.
func (in *Interpreter) ExecuteBytecodeWithFFI(bytecode []byte, ffiRegistry *FfiRegistry) error {
	ip := 0
	for ip < len(bytecode) {
		if err := in.consumeGas(); err != nil {
			return err
		}
		op := OpCode(bytecode[ip])
		if !op.Valid() {
			return ErrUnsupportedOp
		}
		ip++

		switch op {
		case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
			b, err := in.popInt()
			if err != nil {
				return err
			}
			a, err := in.popInt()
			if err != nil {
				return err
			}
			var r int64
			switch op {
			case OpAdd:
				r = a + b
			case OpSubtract:
				r = a - b
			case OpMultiply:
				r = a * b
			case OpDivide:
				if b == 0 {
					return ErrDivisionByZero
				}
				r = a / b
			case OpModulo:
				if b == 0 {
					return ErrDivisionByZero
				}
				r = a % b
			}
			if err := in.push(Integer(r)); err != nil {
				return err
			}

		case OpNegate:
			a, err := in.popInt()
			if err != nil {
				return err
			}
			if err := in.push(Integer(-a)); err != nil {
				return err
			}

		case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
			b, err := in.popInt()
			if err != nil {
				return err
			}
			a, err := in.popInt()
			if err != nil {
				return err
			}
			var r bool
			switch op {
			case OpEqual:
				r = a == b
			case OpNotEqual:
				r = a != b
			case OpGreaterThan:
				r = a > b
			case OpLessThan:
				r = a < b
			case OpGreaterEqual:
				r = a >= b
			case OpLessEqual:
				r = a <= b
			}
			if err := in.push(Boolean(r)); err != nil {
				return err
			}

		case OpAnd, OpOr:
			b, err := in.popBool()
			if err != nil {
				return err
			}
			a, err := in.popBool()
			if err != nil {
				return err
			}
			var r bool
			if op == OpAnd {
				r = a && b
			} else {
				r = a || b
			}
			if err := in.push(Boolean(r)); err != nil {
				return err
			}

		case OpNot:
			a, err := in.popBool()
			if err != nil {
				return err
			}
			if err := in.push(Boolean(!a)); err != nil {
				return err
			}

		case OpPush:
			if ip+4 > len(bytecode) {
				return ErrInvalidBytecode
			}
			imm := int32(binary.LittleEndian.Uint32(bytecode[ip : ip+4]))
			ip += 4
			if err := in.push(Integer(int64(imm))); err != nil {
				return err
			}

		case OpPop:
			if _, err := in.pop(); err != nil {
				return err
			}

		case OpDup:
			if len(in.stack) == 0 {
				return ErrStackUnderflow
			}
			top := in.stack[len(in.stack)-1]
			if err := in.push(top); err != nil {
				return err
			}

		case OpSwap:
			n := len(in.stack)
			if n < 2 {
				return ErrStackUnderflow
			}
			in.stack[n-1], in.stack[n-2] = in.stack[n-2], in.stack[n-1]

		case OpJump:
			if ip+4 > len(bytecode) {
				return ErrInvalidBytecode
			}
			target := binary.LittleEndian.Uint32(bytecode[ip : ip+4])
			ip = int(target)

		case OpJumpIfTrue, OpJumpIfFalse:
			if ip+4 > len(bytecode) {
				return ErrInvalidBytecode
			}
			target := binary.LittleEndian.Uint32(bytecode[ip : ip+4])
			ip += 4
			cond, err := in.popBool()
			if err != nil {
				return err
			}
			if (op == OpJumpIfTrue && cond) || (op == OpJumpIfFalse && !cond) {
				ip = int(target)
			}

		case OpLoadVar:
			name, n, err := readName(bytecode, ip)
			if err != nil {
				return err
			}
			ip += n
			v, ok := in.vars[name]
			if !ok {
				v = Null
			}
			if err := in.push(v); err != nil {
				return err
			}

		case OpStoreVar:
			name, n, err := readName(bytecode, ip)
			if err != nil {
				return err
			}
			ip += n
			v, err := in.pop()
			if err != nil {
				return err
			}
			in.vars[name] = v

		case OpCallFfi:
			name, n, err := readName(bytecode, ip)
			if err != nil {
				return err
			}
			ip += n
			if ip >= len(bytecode) {
				return ErrInvalidBytecode
			}
			argCount := int(bytecode[ip])
			ip++
			if len(in.stack) < argCount {
				return ErrStackUnderflow
			}
			args := make([]Value, argCount)
			copy(args, in.stack[len(in.stack)-argCount:])
			in.stack = in.stack[:len(in.stack)-argCount]

			if ffiRegistry == nil {
				return &FfiNotFoundError{Name: name}
			}
			fn, ok := ffiRegistry.Lookup(name)
			if !ok {
				return &FfiNotFoundError{Name: name}
			}
			result, err := fn(args, in.vars)
			if err != nil {
				return newRuntimeError("ffi %q failed: %v", name, err)
			}
			if err := in.push(result); err != nil {
				return err
			}

		case OpHalt:
			if len(in.stack) == 0 {
				in.result = Integer(0)
			} else {
				in.result = in.stack[len(in.stack)-1]
			}
			return nil

		default:
			return ErrUnsupportedOp
		}
	}
	return nil
}

func readName(bytecode []byte, ip int) (string, int, error) {
	if ip+4 > len(bytecode) {
		return "", 0, ErrInvalidBytecode
	}
	nameLen := int(binary.LittleEndian.Uint32(bytecode[ip : ip+4]))
	start := ip + 4
	if start+nameLen > len(bytecode) {
		return "", 0, ErrInvalidBytecode
	}
	return string(bytecode[start : start+nameLen]), 4 + nameLen, nil
}
