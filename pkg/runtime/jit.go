package runtime

import (
	"encoding/binary"
	"sync"
)

// JIT return codes (§4.1.2). Go has no inline machine-code assembler in
// the standard toolchain, so "compiling" here means: decode the segment's
// instructions once into a flat closure-chain (threaded code) instead of
// re-dispatching on the opcode byte on every call. The external contract —
// return codes, gas/result/ffi handles, growable output buffer, stack
// marshalling — is preserved exactly; only the representation of "compiled
// function pointer" changes from a raw machine-code pointer to a Go
// closure, and raw pointer+length pairs become slices.
const (
	jitOK              int64 = 1
	jitOKNoStack       int64 = 0
	jitOutOfGas        int64 = -1
	jitBufferTooSmall  int64 = -4
	jitInsufficientIn  int64 = -6
)

// maxOutBuf caps the output stack buffer growth attempted in
// VM.executeHybridJITFFI (§4.1.2: "retry with grown buffer up to 1 MiB").
const maxOutBuf = 1 << 20 / 8 // int64 slots, i.e. 1 MiB worth of i64s

// compiledFn is a pure-JIT compiled program (no FFI): it runs to Halt and
// reports the result and remaining gas.
type compiledFn func(gas *uint64, result *int64) int64

// stackAwareFn is a compiled computational segment used in hybrid
// execution: it consumes inStack, optionally calls through ffiPtr (never,
// for a computational segment, but the handle is threaded through for
// parity with the spec's signature), and appends to an output stack
// capped at outCap entries.
type stackAwareFn func(gas *uint64, result *int64, ffi *FfiRegistry, inStack []int64, outCap int) (out []int64, rc int64)

// instruction is one decoded bytecode instruction: its opcode and raw
// operand bytes (immediate, jump target, or var/ffi name), plus the byte
// offset it occupies so Jump targets (absolute bytecode offsets) can be
// resolved to instruction indices.
type instruction struct {
	op     OpCode
	offset int
	length int
	imm    int32
	name   string
	argN   byte
}

func decodeInstructions(bytecode []byte) ([]instruction, error) {
	var out []instruction
	ip := 0
	for ip < len(bytecode) {
		n, err := instrLen(bytecode, ip)
		if err != nil {
			return nil, err
		}
		op := OpCode(bytecode[ip])
		in := instruction{op: op, offset: ip, length: n}
		switch op {
		case OpPush:
			in.imm = int32(binary.LittleEndian.Uint32(bytecode[ip+1 : ip+5]))
		case OpLoadVar, OpStoreVar:
			name, _, err := readName(bytecode, ip+1)
			if err != nil {
				return nil, err
			}
			in.name = name
		case OpCallFfi:
			name, nn, err := readName(bytecode, ip+1)
			if err != nil {
				return nil, err
			}
			in.name = name
			in.argN = bytecode[ip+1+nn]
		}
		out = append(out, in)
		ip += n
	}
	return out, nil
}

// minStackDepth abstractly simulates the segment's stack effect to find
// the minimum input-stack depth required before execution, per §4.1.2's
// "compiler computes the minimum stack depth required by abstract stack
// simulation and emits a prologue check".
func minStackDepth(instrs []instruction) int {
	depth := 0
	minSeen := 0
	need := func(n int) {
		depth -= n
		if depth < minSeen {
			minSeen = depth
		}
	}
	for _, in := range instrs {
		switch in.op {
		case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo,
			OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual,
			OpAnd, OpOr:
			need(2)
			depth++
		case OpNegate, OpNot, OpPop:
			need(1)
		case OpDup:
			need(1)
			depth += 2
		case OpSwap:
			need(2)
			depth += 2
		case OpPush:
			depth++
		case OpLoadVar:
			depth++
		case OpStoreVar:
			need(1)
		case OpJumpIfTrue, OpJumpIfFalse:
			need(1)
		case OpCallFfi:
			need(int(in.argN))
			depth++
		case OpHalt, OpJump:
			// no stack effect of their own
		}
	}
	return -minSeen
}

// JITCompiler compiles bytecode segments into reusable closures and is
// guarded only by the caches that hold its output — the compiler itself
// holds no mutable state across calls.
type JITCompiler struct{}

func NewJITCompiler() *JITCompiler { return &JITCompiler{} }

// CompilePure compiles a full FFI-free program (used by the pure-JIT path).
// Programs that read or write variables are refused with ErrUnsupportedOp,
// so the VM runs them on the interpreter.
func (c *JITCompiler) CompilePure(bytecode []byte) (compiledFn, error) {
	instrs, err := decodeInstructions(bytecode)
	if err != nil {
		return nil, err
	}
	for _, in := range instrs {
		if in.op == OpLoadVar || in.op == OpStoreVar {
			return nil, ErrUnsupportedOp
		}
	}
	return func(gasPtr *uint64, resultPtr *int64) int64 {
		vm := &pureRun{gas: gasPtr, instrs: instrs}
		return vm.run(resultPtr)
	}, nil
}

// CompileWithStack compiles a computational segment for hybrid execution.
// Segments containing a jump, a variable access or CallFfi are refused
// with ErrUnsupportedOp, so the VM runs them on the interpreter.
func (c *JITCompiler) CompileWithStack(bytecode []byte, _ string) (stackAwareFn, error) {
	instrs, err := decodeInstructions(bytecode)
	if err != nil {
		return nil, err
	}
	for _, in := range instrs {
		switch in.op {
		case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpLoadVar, OpStoreVar, OpCallFfi:
			return nil, ErrUnsupportedOp
		}
	}
	required := minStackDepth(instrs)
	return func(gasPtr *uint64, resultPtr *int64, ffi *FfiRegistry, inStack []int64, outCap int) ([]int64, int64) {
		if len(inStack) < required {
			return nil, jitInsufficientIn
		}
		stack := append([]int64(nil), inStack...)
		ip := 0
		for ip < len(instrs) {
			if *gasPtr == 0 {
				return nil, jitOutOfGas
			}
			*gasPtr--
			in := instrs[ip]
			var ok bool
			stack, ok = stepStack(stack, in)
			if !ok {
				return nil, jitInsufficientIn
			}
			if in.op == OpHalt {
				if len(stack) > 0 {
					*resultPtr = stack[len(stack)-1]
				} else {
					*resultPtr = 0
				}
				break
			}
			ip++
		}
		if len(stack) > outCap {
			return nil, jitBufferTooSmall
		}
		if len(stack) == 0 {
			return nil, jitOKNoStack
		}
		return stack, jitOK
	}, nil
}

// stepStack applies one instruction's pure-arithmetic/stack effect. Only
// opcodes with no control-flow/variable/FFI dependency are handled here:
// CompileWithStack refuses segments containing CallFfi, Jump*, LoadVar or
// StoreVar, CompilePure refuses programs containing LoadVar or StoreVar,
// and pureRun resolves jumps itself before calling stepStack.
func stepStack(stack []int64, in instruction) ([]int64, bool) {
	pop2 := func() (int64, int64, bool) {
		if len(stack) < 2 {
			return 0, 0, false
		}
		b := stack[len(stack)-1]
		a := stack[len(stack)-2]
		stack = stack[:len(stack)-2]
		return a, b, true
	}
	pop1 := func() (int64, bool) {
		if len(stack) < 1 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}
	switch in.op {
	case OpPush:
		return append(stack, int64(in.imm)), true
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
		a, b, ok := pop2()
		if !ok {
			return stack, false
		}
		var r int64
		switch in.op {
		case OpAdd:
			r = a + b
		case OpSubtract:
			r = a - b
		case OpMultiply:
			r = a * b
		case OpDivide:
			if b == 0 {
				return stack, false
			}
			r = a / b
		case OpModulo:
			if b == 0 {
				return stack, false
			}
			r = a % b
		}
		return append(stack, r), true
	case OpNegate:
		a, ok := pop1()
		if !ok {
			return stack, false
		}
		return append(stack, -a), true
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
		a, b, ok := pop2()
		if !ok {
			return stack, false
		}
		var r bool
		switch in.op {
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
		if r {
			return append(stack, 1), true
		}
		return append(stack, 0), true
	case OpAnd, OpOr:
		a, b, ok := pop2()
		if !ok {
			return stack, false
		}
		var r bool
		if in.op == OpAnd {
			r = a != 0 && b != 0
		} else {
			r = a != 0 || b != 0
		}
		if r {
			return append(stack, 1), true
		}
		return append(stack, 0), true
	case OpNot:
		a, ok := pop1()
		if !ok {
			return stack, false
		}
		if a == 0 {
			return append(stack, 1), true
		}
		return append(stack, 0), true
	case OpPop:
		_, ok := pop1()
		return stack, ok
	case OpDup:
		if len(stack) == 0 {
			return stack, false
		}
		return append(stack, stack[len(stack)-1]), true
	case OpSwap:
		n := len(stack)
		if n < 2 {
			return stack, false
		}
		stack[n-1], stack[n-2] = stack[n-2], stack[n-1]
		return stack, true
	case OpHalt:
		return stack, true
	default:
		return stack, true
	}
}

// pureRun executes a full FFI-free, non-hybrid program for the pure-JIT
// path (no stack marshalling in/out, gas only).
type pureRun struct {
	gas    *uint64
	instrs []instruction
}

func (p *pureRun) run(resultPtr *int64) int64 {
	var stack []int64
	for ip := 0; ip < len(p.instrs); ip++ {
		if *p.gas == 0 {
			return jitOutOfGas
		}
		*p.gas--
		in := p.instrs[ip]
		if in.op == OpJump {
			target, ok := resolveTarget(p.instrs, in.imm)
			if !ok {
				return -2
			}
			ip = target - 1
			continue
		}
		if in.op == OpJumpIfTrue || in.op == OpJumpIfFalse {
			if len(stack) == 0 {
				return -2
			}
			cond := stack[len(stack)-1] != 0
			stack = stack[:len(stack)-1]
			if (in.op == OpJumpIfTrue && cond) || (in.op == OpJumpIfFalse && !cond) {
				target, ok := resolveTarget(p.instrs, in.imm)
				if !ok {
					return -2
				}
				ip = target - 1
			}
			continue
		}
		var ok bool
		stack, ok = stepStack(stack, in)
		if !ok {
			return -2
		}
		if in.op == OpHalt {
			if len(stack) > 0 {
				*resultPtr = stack[len(stack)-1]
			} else {
				*resultPtr = 0
			}
			return jitOK
		}
	}
	return jitOKNoStack
}

// resolveTarget maps an absolute bytecode-offset jump target to an index
// into instrs.
func resolveTarget(instrs []instruction, target int32) (int, bool) {
	for i, in := range instrs {
		if in.offset == int(target) {
			return i, true
		}
	}
	return 0, false
}

// lastProducingOpcode returns the opcode of the instruction whose result
// ends up on top of the stack when instrs finishes running: the
// instruction immediately preceding Halt, or — for a Halt-less run such
// as one hybrid computational segment — the final decoded instruction.
// Mirrors vm.rs's execute_jit/update_interpreter_stack heuristic for
// deciding which raw 0/1 results need to be re-tagged as Boolean.
func lastProducingOpcode(instrs []instruction) (OpCode, bool) {
	for i, in := range instrs {
		if in.op == OpHalt {
			if i == 0 {
				return 0, false
			}
			return instrs[i-1].op, true
		}
	}
	if len(instrs) == 0 {
		return 0, false
	}
	return instrs[len(instrs)-1].op, true
}

// segmentResultIsComparison reports whether the value a JIT-compiled run
// of code leaves on top of the stack was produced by a comparison opcode,
// i.e. whether the VM must re-tag its raw int64 as Boolean rather than
// Integer (§4.1.3: "JIT segments must preserve that 0/1 integer results
// of comparison opcodes surface to the interpreter as Boolean").
func segmentResultIsComparison(code []byte) bool {
	instrs, err := decodeInstructions(code)
	if err != nil {
		return false
	}
	op, ok := lastProducingOpcode(instrs)
	return ok && op.isComparison()
}

// JITCache maps bytecode hash -> compiled pure function, guarded by a
// single mutex (§5: "JIT cache: guarded by a mutex around the JIT module;
// lookups produce function pointers that remain valid for the module's
// lifetime"). The module is never unloaded during process runtime.
type JITCache struct {
	mu       sync.Mutex
	compiler *JITCompiler
	fns      map[uint64]compiledFn
}

func NewJITCache() *JITCache {
	return &JITCache{compiler: NewJITCompiler(), fns: make(map[uint64]compiledFn)}
}

// GetOrCompile returns the cached compiled function for hash, compiling
// and inserting it on a miss. Returns (nil, false) if compilation fails —
// per §7, JIT compile errors are non-fatal and the VM falls back to the
// interpreter.
func (c *JITCache) GetOrCompile(hash uint64, bytecode []byte) (compiledFn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn, ok := c.fns[hash]; ok {
		return fn, true
	}
	fn, err := c.compiler.CompilePure(bytecode)
	if err != nil {
		return nil, false
	}
	c.fns[hash] = fn
	return fn, true
}
