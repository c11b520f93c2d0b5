package orchestration

import (
	"fmt"
	"sort"
)

// Requirement describes what a single allocation call is looking for.
// Not every field applies to every strategy: capability_based reads
// Capabilities, load_balanced reads nothing (it always prefers the
// lowest-Load resource), priority_based reads MinPriority, round_robin
// reads nothing (it tracks its own cursor).
type Requirement struct {
	Capabilities []string
	MinPriority  int
}

// Strategy picks one resource from the available snapshot for req, or
// reports that none qualify.
type Strategy func(req Requirement, available []*Resource) (*Resource, error)

// StrategyRegistry maps allocation strategy names to implementations, so
// a ResourceManager can be configured with "capability_based",
// "load_balanced", "priority_based", "round_robin", or a caller-supplied
// name, per §4.2.1.
type StrategyRegistry struct {
	strategies map[string]Strategy
	rrCursor   map[string]int
}

// NewStrategyRegistry returns a registry pre-populated with the four
// default strategies.
func NewStrategyRegistry() *StrategyRegistry {
	reg := &StrategyRegistry{
		strategies: make(map[string]Strategy),
		rrCursor:   make(map[string]int),
	}
	reg.Register("capability_based", capabilityBasedStrategy)
	reg.Register("load_balanced", loadBalancedStrategy)
	reg.Register("priority_based", priorityBasedStrategy)
	reg.Register("round_robin", reg.roundRobinStrategy("workflow"))
	return reg
}

// Register adds or replaces a named strategy.
func (reg *StrategyRegistry) Register(name string, s Strategy) {
	reg.strategies[name] = s
}

// Select runs the named strategy. An unknown name is a ConfigurationError.
func (reg *StrategyRegistry) Select(name string, req Requirement, available []*Resource) (*Resource, error) {
	s, ok := reg.strategies[name]
	if !ok {
		return nil, &ConfigurationError{Field: "allocation_strategy", Reason: fmt.Sprintf("unknown strategy %q", name)}
	}
	return s(req, available)
}

func sortedByID(rs []*Resource) []*Resource {
	out := append([]*Resource(nil), rs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// capabilityBasedStrategy picks the first available resource (by ID,
// for determinism) whose Capabilities is a superset of req.Capabilities.
func capabilityBasedStrategy(req Requirement, available []*Resource) (*Resource, error) {
	for _, r := range sortedByID(available) {
		if hasAllCapabilities(r.Capabilities, req.Capabilities) {
			return r, nil
		}
	}
	return nil, &ResourceAllocationError{PoolKind: "agent", ResourceID: "", Reason: "no resource satisfies required capabilities"}
}

func hasAllCapabilities(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// loadBalancedStrategy picks the resource with the lowest Load,
// modelling §4.2.1's "one shared LLM instance reused across all LLM
// blocks in one flow" by always preferring the least-loaded instance.
func loadBalancedStrategy(_ Requirement, available []*Resource) (*Resource, error) {
	if len(available) == 0 {
		return nil, &ResourceAllocationError{PoolKind: "llm", ResourceID: "", Reason: "pool exhausted"}
	}
	best := sortedByID(available)[0]
	for _, r := range available {
		if r.Load < best.Load {
			best = r
		}
	}
	return best, nil
}

// priorityBasedStrategy picks the highest-Priority resource meeting
// req.MinPriority.
func priorityBasedStrategy(req Requirement, available []*Resource) (*Resource, error) {
	var best *Resource
	for _, r := range sortedByID(available) {
		if r.Priority < req.MinPriority {
			continue
		}
		if best == nil || r.Priority > best.Priority {
			best = r
		}
	}
	if best == nil {
		return nil, &ResourceAllocationError{PoolKind: "task", ResourceID: "", Reason: "no resource meets minimum priority"}
	}
	return best, nil
}

// roundRobinStrategy returns a Strategy that cycles through the
// available set in ID order, tracking a per-poolName cursor on the
// registry so repeated calls rotate even as pool membership changes.
func (reg *StrategyRegistry) roundRobinStrategy(poolName string) Strategy {
	return func(_ Requirement, available []*Resource) (*Resource, error) {
		if len(available) == 0 {
			return nil, &ResourceAllocationError{PoolKind: poolName, ResourceID: "", Reason: "pool exhausted"}
		}
		sorted := sortedByID(available)
		idx := reg.rrCursor[poolName] % len(sorted)
		reg.rrCursor[poolName] = idx + 1
		return sorted[idx], nil
	}
}
