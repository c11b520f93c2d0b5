package runtime

import "sync"

// ExecutionProfiler counts executions per bytecode hash, driving the JIT
// threshold decision in §4.1.2. Grounded on sleet/src/runtime/profiler.rs
// (referenced from vm.rs but not itself retrieved; reconstructed from its
// call sites: record_execution, get_execution_count, get_all_counts).
type ExecutionProfiler struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func NewExecutionProfiler() *ExecutionProfiler {
	return &ExecutionProfiler{counts: make(map[string]uint64)}
}

func (p *ExecutionProfiler) RecordExecution(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[hash]++
}

func (p *ExecutionProfiler) ExecutionCount(hash string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[hash]
}

// AllCounts returns a stable-ish snapshot of every observed bytecode hash
// and its execution count, used by VM.ProfilerStats.
func (p *ExecutionProfiler) AllCounts() map[string]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]uint64, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}
