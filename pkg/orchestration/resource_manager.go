package orchestration

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sleetrun/sleet/pkg/runtime"
)

// SessionLimits bounds how much a single flow may allocate, per §4.2.1's
// "bundle counts are validated against per-session limits".
type SessionLimits struct {
	MaxAgents    int
	MaxLLMs      int
	MaxTasks     int
	MaxWorkflows int

	// MaxConcurrentAllocations bounds how many AllocateForFlow calls may
	// be in their critical section (or waiting to enter it) at once.
	// Past this bound, new callers are rejected immediately with
	// ResourceAllocationError rather than queueing behind the manager's
	// mutex, per §5's "writers are short" guidance applied to the
	// admission path itself.
	MaxConcurrentAllocations int
}

// DefaultSessionLimits matches the conservative defaults the teacher's
// pkg/config/defaults.go uses for per-session bounds: generous enough
// not to reject realistic flows, tight enough to catch runaway ones.
func DefaultSessionLimits() SessionLimits {
	return SessionLimits{MaxAgents: 16, MaxLLMs: 4, MaxTasks: 32, MaxWorkflows: 8, MaxConcurrentAllocations: 64}
}

// FlowRequirements is the bundle analyse_flow_requirements produces: how
// many of each resource kind a flow needs. LLM count is always at most 1
// because one shared instance is reused across all LLM blocks in a flow
// (§4.2.1).
type FlowRequirements struct {
	AgentCount    int
	LLMCount      int
	TaskCount     int
	WorkflowCount int
}

// AnalyseFlowRequirements walks a flow's blocks and counts how many of
// each resource kind it needs, per §4.2.1. Grounded on
// sleet/src/orchestration/resource_manager/mod.rs::analyse_flow_requirements.
func AnalyseFlowRequirements(flow *runtime.Flow) FlowRequirements {
	var req FlowRequirements
	sawLLM := false
	for _, b := range flow.Blocks {
		switch b.Type {
		case runtime.BlockAgentCall:
			req.AgentCount++
		case runtime.BlockLLMCall:
			if !sawLLM {
				req.LLMCount = 1
				sawLLM = true
			}
		case runtime.BlockToolCall:
			req.TaskCount++
		case runtime.BlockWorkflowCall:
			req.WorkflowCount++
		}
	}
	return req
}

// validateAgainstLimits checks req against limits, returning a
// ConfigurationError naming the first violated bound.
func validateAgainstLimits(req FlowRequirements, limits SessionLimits) error {
	switch {
	case req.AgentCount > limits.MaxAgents:
		return &ConfigurationError{Field: "agents", Reason: "flow requires more agents than the session limit allows"}
	case req.LLMCount > limits.MaxLLMs:
		return &ConfigurationError{Field: "llms", Reason: "flow requires more LLM instances than the session limit allows"}
	case req.TaskCount > limits.MaxTasks:
		return &ConfigurationError{Field: "tasks", Reason: "flow requires more tasks than the session limit allows"}
	case req.WorkflowCount > limits.MaxWorkflows:
		return &ConfigurationError{Field: "workflows", Reason: "flow requires more workflows than the session limit allows"}
	}
	return nil
}

// FlowAllocation is the set of resources granted to one flow execution,
// returned by AllocateForFlow and consumed whole by ReleaseResources.
type FlowAllocation struct {
	SessionID string
	Agents    []*Resource
	LLMs      []*Resource
	Tasks     []*Resource
	Workflows []*Resource
}

// ResourceManager owns the four resource pools and their allocation
// strategy assignments. Grounded on
// sleet/src/orchestration/resource_manager/mod.rs's ResourceManager.
type ResourceManager struct {
	mu sync.Mutex

	Agents    *Pool
	LLMs      *Pool
	Tasks     *Pool
	Workflows *Pool

	strategies *StrategyRegistry

	agentStrategy    string
	llmStrategy      string
	taskStrategy     string
	workflowStrategy string

	limits   SessionLimits
	allocSem *semaphore.Weighted
}

// NewResourceManager constructs a manager with the four default
// strategy assignments from §4.2.1.
func NewResourceManager(limits SessionLimits) *ResourceManager {
	n := limits.MaxConcurrentAllocations
	if n <= 0 {
		n = DefaultSessionLimits().MaxConcurrentAllocations
	}
	return &ResourceManager{
		Agents:           NewPool("agent"),
		LLMs:             NewPool("llm"),
		Tasks:            NewPool("task"),
		Workflows:        NewPool("workflow"),
		strategies:       NewStrategyRegistry(),
		agentStrategy:    "capability_based",
		llmStrategy:      "load_balanced",
		taskStrategy:     "priority_based",
		workflowStrategy: "round_robin",
		limits:           limits,
		allocSem:         semaphore.NewWeighted(int64(n)),
	}
}

// SetStrategy overrides the strategy name used for one resource kind
// ("agent", "llm", "task", "workflow"). The name must already be
// registered in the manager's StrategyRegistry.
func (m *ResourceManager) SetStrategy(kind, name string) {
	switch kind {
	case "agent":
		m.agentStrategy = name
	case "llm":
		m.llmStrategy = name
	case "task":
		m.taskStrategy = name
	case "workflow":
		m.workflowStrategy = name
	}
}

// Strategies exposes the registry so callers can register custom named
// strategies before calling SetStrategy.
func (m *ResourceManager) Strategies() *StrategyRegistry { return m.strategies }

// AllocateForFlow analyses flow, validates the bundle against session
// limits, and allocates every required resource atomically: the whole
// allocation happens under one critical section so a mid-flow failure
// never leaves a partially-allocated session (§4.2.1, §5).
func (m *ResourceManager) AllocateForFlow(sessionID string, flow *runtime.Flow, agentReq, taskReq Requirement) (*FlowAllocation, error) {
	req := AnalyseFlowRequirements(flow)
	if err := validateAgainstLimits(req, m.limits); err != nil {
		return nil, err
	}

	if !m.allocSem.TryAcquire(1) {
		return nil, &ResourceAllocationError{PoolKind: "manager", ResourceID: sessionID, Reason: "too many concurrent allocation attempts"}
	}
	defer m.allocSem.Release(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	alloc := &FlowAllocation{SessionID: sessionID}

	rollback := func() {
		for _, r := range alloc.Agents {
			_ = m.Agents.ReleaseByID(r.ID)
		}
		for _, r := range alloc.LLMs {
			_ = m.LLMs.ReleaseByID(r.ID)
		}
		for _, r := range alloc.Tasks {
			_ = m.Tasks.ReleaseByID(r.ID)
		}
		for _, r := range alloc.Workflows {
			_ = m.Workflows.ReleaseByID(r.ID)
		}
	}

	for i := 0; i < req.AgentCount; i++ {
		r, err := m.allocateOne(m.Agents, m.agentStrategy, agentReq)
		if err != nil {
			rollback()
			return nil, err
		}
		alloc.Agents = append(alloc.Agents, r)
	}
	for i := 0; i < req.LLMCount; i++ {
		r, err := m.allocateOne(m.LLMs, m.llmStrategy, Requirement{})
		if err != nil {
			rollback()
			return nil, err
		}
		alloc.LLMs = append(alloc.LLMs, r)
	}
	for i := 0; i < req.TaskCount; i++ {
		r, err := m.allocateOne(m.Tasks, m.taskStrategy, taskReq)
		if err != nil {
			rollback()
			return nil, err
		}
		alloc.Tasks = append(alloc.Tasks, r)
	}
	for i := 0; i < req.WorkflowCount; i++ {
		r, err := m.allocateOne(m.Workflows, m.workflowStrategy, Requirement{})
		if err != nil {
			rollback()
			return nil, err
		}
		alloc.Workflows = append(alloc.Workflows, r)
	}

	return alloc, nil
}

func (m *ResourceManager) allocateOne(pool *Pool, strategyName string, req Requirement) (*Resource, error) {
	available := pool.Snapshot()
	chosen, err := m.strategies.Select(strategyName, req, available)
	if err != nil {
		return nil, err
	}
	return pool.AllocateByID(chosen.ID)
}

// ReleaseResources returns every resource in alloc to its pool, in one
// critical section (§4.2.1: "release is atomic on session end").
func (m *ResourceManager) ReleaseResources(alloc *FlowAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, r := range alloc.Agents {
		record(m.Agents.ReleaseByID(r.ID))
	}
	for _, r := range alloc.LLMs {
		record(m.LLMs.ReleaseByID(r.ID))
	}
	for _, r := range alloc.Tasks {
		record(m.Tasks.ReleaseByID(r.ID))
	}
	for _, r := range alloc.Workflows {
		record(m.Workflows.ReleaseByID(r.ID))
	}
	return firstErr
}
