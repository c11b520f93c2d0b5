package orchestration

import (
	"testing"

	"github.com/sleetrun/sleet/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flowWithBlocks(types ...runtime.BlockType) *runtime.Flow {
	f := runtime.NewFlow("f1", "b0")
	for i, bt := range types {
		id := "b" + string(rune('0'+i))
		next := ""
		if i+1 < len(types) {
			next = "b" + string(rune('0'+i+1))
		}
		f.AddBlock(&runtime.Block{ID: id, Type: bt, Next: next})
	}
	return f
}

func TestAnalyseFlowRequirements_CountsEachKind(t *testing.T) {
	f := flowWithBlocks(
		runtime.BlockAgentCall,
		runtime.BlockAgentCall,
		runtime.BlockLLMCall,
		runtime.BlockLLMCall, // second LLM block shares the one instance
		runtime.BlockToolCall,
		runtime.BlockWorkflowCall,
		runtime.BlockTerminator,
	)
	req := AnalyseFlowRequirements(f)
	assert.Equal(t, 2, req.AgentCount)
	assert.Equal(t, 1, req.LLMCount, "one shared LLM instance is reused across all LLM blocks")
	assert.Equal(t, 1, req.TaskCount)
	assert.Equal(t, 1, req.WorkflowCount)
}

func TestResourceManager_AllocateForFlow_AllOrNothing(t *testing.T) {
	f := flowWithBlocks(runtime.BlockAgentCall, runtime.BlockAgentCall, runtime.BlockTerminator)

	m := NewResourceManager(DefaultSessionLimits())
	m.Agents.Add(&Resource{ID: "a1", Capabilities: []string{"chat"}})
	// Only one agent registered but the flow needs two: allocation must
	// fail and leave the pool untouched.

	_, err := m.AllocateForFlow("s1", f, Requirement{Capabilities: []string{"chat"}}, Requirement{})
	require.Error(t, err)
	assert.Equal(t, 1, m.Agents.AvailableCount())
	assert.Equal(t, 0, m.Agents.AllocatedCount())
}

func TestResourceManager_AllocateAndRelease(t *testing.T) {
	f := flowWithBlocks(runtime.BlockAgentCall, runtime.BlockLLMCall, runtime.BlockTerminator)

	m := NewResourceManager(DefaultSessionLimits())
	m.Agents.Add(&Resource{ID: "a1", Capabilities: []string{"chat"}})
	m.LLMs.Add(&Resource{ID: "l1"})

	alloc, err := m.AllocateForFlow("s1", f, Requirement{Capabilities: []string{"chat"}}, Requirement{})
	require.NoError(t, err)
	require.Len(t, alloc.Agents, 1)
	require.Len(t, alloc.LLMs, 1)
	assert.Equal(t, 0, m.Agents.AvailableCount())

	require.NoError(t, m.ReleaseResources(alloc))
	assert.Equal(t, 1, m.Agents.AvailableCount())
	assert.Equal(t, 1, m.LLMs.AvailableCount())
}

func TestResourceManager_ConcurrentAllocationCapRejectsExcessCallers(t *testing.T) {
	f := flowWithBlocks(runtime.BlockAgentCall, runtime.BlockTerminator)

	m := NewResourceManager(SessionLimits{MaxAgents: 1, MaxLLMs: 1, MaxTasks: 1, MaxWorkflows: 1, MaxConcurrentAllocations: 1})
	m.Agents.Add(&Resource{ID: "a1"})

	if !m.allocSem.TryAcquire(1) {
		t.Fatal("expected to acquire the single allocation slot")
	}
	defer m.allocSem.Release(1)

	_, err := m.AllocateForFlow("s1", f, Requirement{}, Requirement{})
	var rae *ResourceAllocationError
	require.ErrorAs(t, err, &rae)
	assert.Equal(t, 1, m.Agents.AvailableCount(), "rejected caller must not have touched the pool")
}

func TestResourceManager_ExceedsSessionLimitIsConfigurationError(t *testing.T) {
	types := make([]runtime.BlockType, 0, 20)
	for i := 0; i < 20; i++ {
		types = append(types, runtime.BlockAgentCall)
	}
	types = append(types, runtime.BlockTerminator)
	f := flowWithBlocks(types...)

	m := NewResourceManager(SessionLimits{MaxAgents: 2, MaxLLMs: 1, MaxTasks: 1, MaxWorkflows: 1})
	_, err := m.AllocateForFlow("s1", f, Requirement{}, Requirement{})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
}
