package orchestration

import "sync"

// Resource is one allocatable unit held by a Pool: an agent, an LLM
// instance, a task slot, or a workflow slot. Not every field is
// meaningful for every kind — Capabilities drives capability_based
// selection (agents), Load drives load_balanced selection (LLMs),
// Priority drives priority_based selection (tasks); round_robin
// (workflows) needs none of them.
type Resource struct {
	ID           string
	Kind         string
	Capabilities []string
	Load         float64
	Priority     int
}

// Pool is a fixed-kind resource pool guarded by a single RWMutex, per
// §5's "resource pools: guarded by a reader-writer lock; writers are
// short". Grounded on sleet/src/orchestration/resource_manager/mod.rs's
// pool/allocation-tracking split, adapted to Go's sync primitives.
type Pool struct {
	kind      string
	mu        sync.RWMutex
	resources map[string]*Resource
	allocated map[string]bool
}

// NewPool constructs an empty pool of the given kind ("agent", "llm",
// "task", "workflow").
func NewPool(kind string) *Pool {
	return &Pool{
		kind:      kind,
		resources: make(map[string]*Resource),
		allocated: make(map[string]bool),
	}
}

// Add registers r as available. Re-adding an existing ID replaces its
// metadata but preserves its allocation state.
func (p *Pool) Add(r *Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources[r.ID] = r
}

// AllocateByID marks id as allocated. Allocating an unknown or already
// allocated resource is an error.
func (p *Pool) AllocateByID(id string) (*Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[id]
	if !ok {
		return nil, &ResourceNotFoundError{PoolKind: p.kind, ResourceID: id}
	}
	if p.allocated[id] {
		return nil, &ResourceAllocationError{PoolKind: p.kind, ResourceID: id, Reason: "already allocated"}
	}
	p.allocated[id] = true
	return r, nil
}

// ReleaseByID marks id as available again. Releasing an unknown or
// already-available resource is an error.
func (p *Pool) ReleaseByID(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.resources[id]; !ok {
		return &ResourceNotFoundError{PoolKind: p.kind, ResourceID: id}
	}
	if !p.allocated[id] {
		return &ResourceAllocationError{PoolKind: p.kind, ResourceID: id, Reason: "already released"}
	}
	delete(p.allocated, id)
	return nil
}

// AvailableCount returns the number of resources not currently allocated.
func (p *Pool) AvailableCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.resources) - len(p.allocated)
}

// AllocatedCount returns the number of resources currently allocated.
func (p *Pool) AllocatedCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.allocated)
}

// Snapshot returns the resources currently available, for allocation
// strategies to choose among without holding the pool lock while they
// decide.
func (p *Pool) Snapshot() []*Resource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Resource, 0, len(p.resources)-len(p.allocated))
	for id, r := range p.resources {
		if !p.allocated[id] {
			out = append(out, r)
		}
	}
	return out
}
