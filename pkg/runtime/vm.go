package runtime

import (
	"hash/fnv"
)

// DefaultJITThreshold is the execution count at which a bytecode program
// (keyed by its hash) becomes eligible for JIT compilation (§4.1.2:
// "bytecode executed more than a small fixed number of times is
// considered hot").
const DefaultJITThreshold = 3

// ExecutionStrategy records which path a VM.Execute call actually took,
// for diagnostics and for the hybrid-segment tracing supplemental
// feature (SPEC_FULL §2).
type ExecutionStrategy int

const (
	StrategyInterpreter ExecutionStrategy = iota
	StrategyPureJIT
	StrategyHybrid
)

func (s ExecutionStrategy) String() string {
	switch s {
	case StrategyInterpreter:
		return "interpreter"
	case StrategyPureJIT:
		return "pure_jit"
	case StrategyHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// VM ties together the interpreter, the JIT cache, the FFI registry and
// the execution profiler described across §4.1.1-§4.1.2. One VM is
// constructed per logical execution context (a flow run); its
// Interpreter's variable bindings and stack persist for the VM's
// lifetime so suspend/resume works across calls.
type VM struct {
	interp    *Interpreter
	ffi       *FfiRegistry
	jit       *JITCache
	profiler  *ExecutionProfiler
	threshold uint64

	lastStrategy ExecutionStrategy
}

// NewVM constructs a VM with the given gas budget and FFI registry (which
// may be nil for pure-computation flows).
func NewVM(gasLimit uint64, ffi *FfiRegistry) *VM {
	return &VM{
		interp:    NewInterpreter(gasLimit),
		ffi:       ffi,
		jit:       NewJITCache(),
		profiler:  NewExecutionProfiler(),
		threshold: DefaultJITThreshold,
	}
}

func (vm *VM) Interpreter() *Interpreter       { return vm.interp }
func (vm *VM) Profiler() *ExecutionProfiler    { return vm.profiler }
func (vm *VM) LastStrategy() ExecutionStrategy { return vm.lastStrategy }

// SetJITThreshold overrides DefaultJITThreshold, mainly for tests that
// want to force or suppress JIT promotion deterministically.
func (vm *VM) SetJITThreshold(n uint64) { vm.threshold = n }

// hashBytecode derives the cache/profiler key for a bytecode program.
// FNV-1a is used for the same reason the teacher's queue package hashes
// job payloads with a non-cryptographic checksum: speed over collision
// resistance at this volume, and determinism across runs.
func hashBytecode(bytecode []byte) uint64 {
	h := fnv.New64a()
	h.Write(bytecode)
	return h.Sum64()
}

// Execute runs bytecode with no FFI access. It is equivalent to
// ExecuteWithFFI(bytecode) but documents the FFI-free call site
// explicitly for callers building pure-computation segments.
func (vm *VM) Execute(bytecode []byte) error {
	return vm.ExecuteWithFFI(bytecode)
}

// ExecuteWithFFI implements the three-way dispatch of §4.1.2: bytecode
// containing no FFI calls is eligible for promotion to a pure-JIT
// closure once it crosses the hotness threshold; bytecode containing FFI
// calls always runs hybrid, split into computational/FFI segments,
// whatever its execution count; FFI-free bytecode below threshold, or
// whose compiled form cannot run it, runs (or falls back to) the
// interpreter.
func (vm *VM) ExecuteWithFFI(bytecode []byte) error {
	hash := hashBytecode(bytecode)
	vm.profiler.RecordExecution(keyOf(hash))
	count := vm.profiler.ExecutionCount(keyOf(hash))

	hasFFI := bytecodeContainsFFI(bytecode)

	if !hasFFI && count >= vm.threshold {
		if err, handled := vm.executePureJIT(hash, bytecode); handled {
			vm.lastStrategy = StrategyPureJIT
			return err
		}
	}

	if hasFFI {
		if err, handled := vm.executeHybridJITFFI(bytecode); handled {
			vm.lastStrategy = StrategyHybrid
			return err
		}
	}

	vm.lastStrategy = StrategyInterpreter
	return vm.interp.ExecuteBytecodeWithFFI(bytecode, vm.ffi)
}

func keyOf(h uint64) string {
	// A fixed-width hex key keeps profiler.AllCounts()'s map keys stable
	// and human-readable in diagnostics without importing strconv twice.
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexdigits[h&0xf]
		h >>= 4
	}
	return string(buf)
}

// executePureJIT attempts the fully-compiled path for FFI-free bytecode.
// handled is false if compilation failed or the compiled run returned a
// code other than OK, OK-no-stack or out-of-gas, signalling the caller
// to fall back to the interpreter (compile failure is never fatal, per
// §7).
func (vm *VM) executePureJIT(hash uint64, bytecode []byte) (error, bool) {
	fn, ok := vm.jit.GetOrCompile(hash, bytecode)
	if !ok {
		return nil, false
	}
	gas := vm.interp.Gas()
	var result int64
	rc := fn(&gas, &result)
	vm.interp.SetGas(gas)
	switch rc {
	case jitOK:
		if segmentResultIsComparison(bytecode) {
			vm.interp.result = Boolean(result != 0)
		} else {
			vm.interp.result = Integer(result)
		}
		return nil, true
	case jitOKNoStack:
		return nil, true
	case jitOutOfGas:
		return ErrOutOfGas, true
	default:
		return nil, false
	}
}

// executeHybridJITFFI runs the segmented execution strategy: computational
// segments are compiled to a closure on every call (there is no segment
// cache and no hotness threshold), FFI segments
// always run through the interpreter (so FFI calls always observe a
// consistent Value-typed stack and variable map). A computational
// segment's compiled form reporting "insufficient input" degrades that
// segment only to the interpreter; it does not abort the whole run.
func (vm *VM) executeHybridJITFFI(bytecode []byte) (error, bool) {
	segments, err := splitBytecodeForHybrid(bytecode)
	if err != nil {
		return nil, false
	}
	for _, seg := range segments {
		switch seg.kind {
		case segFFI:
			if err := vm.interp.ExecuteBytecodeWithFFI(seg.code, vm.ffi); err != nil {
				return err, true
			}
		case segComputational:
			if err := vm.executeComputationalSegment(seg.code); err != nil {
				return err, true
			}
		}
	}
	return nil, true
}

// executeComputationalSegment runs one FFI-free segment of a hybrid
// program: compile it, feed it the interpreter's current operand stack
// as the in-stack, and on success replace the stack with the compiled
// function's out-stack. Any non-OK, non-insufficient-input return code
// other than out-of-gas is returned as a fatal RuntimeError, matching
// §4.1.2's "a negative code other than -1/-4/-6 never reaches the
// caller; the embedding VM maps it to a fatal runtime error".
func (vm *VM) executeComputationalSegment(code []byte) error {
	compiled, err := NewJITCompiler().CompileWithStack(code, "")
	if err != nil {
		return vm.interp.ExecuteBytecodeWithFFI(code, vm.ffi)
	}

	inStack := make([]int64, len(vm.interp.stack))
	for i, v := range vm.interp.stack {
		inStack[i] = v.AsInt64()
	}

	outCap := len(inStack) + 64
	for outCap <= maxOutBuf {
		gas := vm.interp.Gas()
		var result int64
		out, rc := compiled(&gas, &result, vm.ffi, inStack, outCap)
		switch rc {
		case jitOK:
			vm.interp.SetGas(gas)
			vm.interp.stack = vm.interp.stack[:0]
			boolResult := segmentResultIsComparison(code)
			for i, iv := range out {
				if boolResult && i == len(out)-1 {
					vm.interp.stack = append(vm.interp.stack, Boolean(iv != 0))
				} else {
					vm.interp.stack = append(vm.interp.stack, Integer(iv))
				}
			}
			if boolResult {
				vm.interp.result = Boolean(result != 0)
			} else {
				vm.interp.result = Integer(result)
			}
			return nil
		case jitOKNoStack:
			vm.interp.SetGas(gas)
			vm.interp.stack = vm.interp.stack[:0]
			return nil
		case jitOutOfGas:
			return ErrOutOfGas
		case jitBufferTooSmall:
			outCap *= 2
			continue
		case jitInsufficientIn:
			return vm.interp.ExecuteBytecodeWithFFI(code, vm.ffi)
		default:
			return newRuntimeError("jit segment returned unexpected code %d", rc)
		}
	}
	return vm.interp.ExecuteBytecodeWithFFI(code, vm.ffi)
}

// DescribeComputationalSegment summarises a computational segment for
// diagnostics: its instruction count, minimum input-stack depth and
// whether it contains control flow, mirroring
// VM::describe_computational_segment's tracing helper (SPEC_FULL
// supplemental feature 2).
type SegmentDescription struct {
	InstructionCount int
	MinStackDepth    int
	HasControlFlow   bool
}

func DescribeComputationalSegment(code []byte) (SegmentDescription, error) {
	instrs, err := decodeInstructions(code)
	if err != nil {
		return SegmentDescription{}, err
	}
	desc := SegmentDescription{
		InstructionCount: len(instrs),
		MinStackDepth:    minStackDepth(instrs),
	}
	for _, in := range instrs {
		if in.op == OpJump || in.op == OpJumpIfTrue || in.op == OpJumpIfFalse {
			desc.HasControlFlow = true
			break
		}
	}
	return desc, nil
}
