package main

import (
	"fmt"
	"os"

	"github.com/sleetrun/sleet/pkg/backpressure"
	"github.com/sleetrun/sleet/pkg/runtime"
)

// runSmoke exercises the bytecode VM and the backpressure controller with
// the literal scenarios spec §8 names (S1-S3, S5), without touching any
// database. It is the CLI's offline self-test: a clean exit confirms the
// core's computational layers are wired correctly wherever it runs.
func runSmoke(_ []string) int {
	if err := smokeArithmetic(); err != nil {
		fmt.Fprintf(os.Stderr, "smoke: arithmetic round trip failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Println("smoke: S1 arithmetic round trip ok")

	if err := smokeComparison(); err != nil {
		fmt.Fprintf(os.Stderr, "smoke: comparison failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Println("smoke: S2 comparison produces Boolean ok")

	if err := smokeFFIHybrid(); err != nil {
		fmt.Fprintf(os.Stderr, "smoke: FFI hybrid failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Println("smoke: S3 FFI hybrid ok")

	if err := smokeBackpressure(); err != nil {
		fmt.Fprintf(os.Stderr, "smoke: backpressure progression failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Println("smoke: S5 backpressure progression ok")

	return exitSuccess
}

// smokeArithmetic is S1: Push 2; Push 3; Add; Push 4; Multiply; Halt,
// gas limit 100, expecting result 20 with gas remaining >= 94.
func smokeArithmetic() error {
	bytecode := runtime.NewAssembler().
		Push(2).Push(3).Add().Push(4).Multiply().Halt().Bytes()

	vm := runtime.NewVM(100, nil)
	if err := vm.Execute(bytecode); err != nil {
		return err
	}
	result := vm.Interpreter().Result()
	if result.Kind != runtime.KindInteger || result.Int != 20 {
		return fmt.Errorf("expected result 20, got %v", result)
	}
	if len(vm.Interpreter().Stack()) != 0 {
		return fmt.Errorf("expected empty stack after halt, got %d items", len(vm.Interpreter().Stack()))
	}
	if vm.Interpreter().Gas() < 94 {
		return fmt.Errorf("expected gas remaining >= 94, got %d", vm.Interpreter().Gas())
	}
	return nil
}

// smokeComparison is S2: Push 5; Push 3; GreaterThan; Halt, expecting
// Boolean(true) on top.
func smokeComparison() error {
	bytecode := runtime.NewAssembler().Push(5).Push(3).GreaterThan().Halt().Bytes()
	vm := runtime.NewVM(100, nil)
	if err := vm.Execute(bytecode); err != nil {
		return err
	}
	result := vm.Interpreter().Result()
	truthy, ok := result.IsTruthy()
	if !ok || !truthy {
		return fmt.Errorf("expected Boolean(true), got %v", result)
	}
	return nil
}

// smokeFFIHybrid is S3: Push 10; Push 20; Add; CallFfi("double",1); Halt
// with an FFI double(x)=2x, expecting result 60.
func smokeFFIHybrid() error {
	ffi := runtime.NewFfiRegistry()
	ffi.Register("double", func(args []runtime.Value, _ map[string]runtime.Value) (runtime.Value, error) {
		if len(args) != 1 || args[0].Kind != runtime.KindInteger {
			return runtime.Null, fmt.Errorf("double: expected one integer argument")
		}
		return runtime.Integer(args[0].Int * 2), nil
	})

	bytecode := runtime.NewAssembler().
		Push(10).Push(20).Add().CallFfi("double", 1).Halt().Bytes()

	vm := runtime.NewVM(100, ffi)
	if err := vm.ExecuteWithFFI(bytecode); err != nil {
		return err
	}
	result := vm.Interpreter().Result()
	if result.Kind != runtime.KindInteger || result.Int != 60 {
		return fmt.Errorf("expected result 60, got %v", result)
	}
	return nil
}

// smokeBackpressure is S5: a fixed (depth, capacity, p95, sla,
// failures, processed) sequence with zero half-lives (deterministic,
// no smoothing lag), expecting Green, Amber, Red, Green.
func smokeBackpressure() error {
	cfg := backpressure.DefaultConfig()
	cfg.ShortHalfLife = 0
	cfg.LongHalfLife = 0
	w := backpressure.NewWindow(cfg, nil)

	type step struct {
		depth, capacity, p95, sla float64
		failures, processed      int
		want                      backpressure.Level
	}
	steps := []step{
		{0, 100, 10, 100, 0, 100, backpressure.Green},
		{100, 100, 80, 100, 0, 100, backpressure.Amber},
		{120, 100, 200, 100, 0, 100, backpressure.Red},
		{80, 100, 90, 100, 0, 100, backpressure.Green},
	}
	for i, s := range steps {
		snap := w.UpdateMetrics(s.depth, s.capacity, s.p95, s.sla, s.failures, s.processed)
		if snap.Level != s.want {
			return fmt.Errorf("step %d: expected level %s, got %s", i, s.want, snap.Level)
		}
	}
	return nil
}
