package main

import (
	"fmt"

	"github.com/sleetrun/sleet/pkg/orchestration"
	"github.com/sleetrun/sleet/pkg/runtime"
)

// runOffload demonstrates allocate_for_flow/release_resources (§4.2.1)
// against a small in-memory flow and resource pool, confirming testable
// property 3: pool availability returns to its pre-allocation value
// after release.
func runOffload(_ []string) int {
	manager := orchestration.NewResourceManager(orchestration.DefaultSessionLimits())
	manager.Agents.Add(&orchestration.Resource{ID: "agent-1", Kind: "agent"})
	manager.Agents.Add(&orchestration.Resource{ID: "agent-2", Kind: "agent"})
	manager.LLMs.Add(&orchestration.Resource{ID: "llm-1", Kind: "llm"})
	manager.Tasks.Add(&orchestration.Resource{ID: "task-1", Kind: "task"})

	flow := runtime.NewFlow("demo-flow", "agent_call")
	flow.AddBlock(&runtime.Block{ID: "agent_call", Type: runtime.BlockAgentCall, Next: "llm_call"})
	flow.AddBlock(&runtime.Block{ID: "llm_call", Type: runtime.BlockLLMCall, Next: "tool_call"})
	flow.AddBlock(&runtime.Block{ID: "tool_call", Type: runtime.BlockToolCall, Bytecode: haltProgram(), Next: "default"})
	flow.AddBlock(&runtime.Block{ID: "default", Type: runtime.BlockTerminator})

	before := manager.Agents.AvailableCount()
	fmt.Printf("offload: available agents before allocation: %d\n", before)

	alloc, err := manager.AllocateForFlow("demo-session", flow, orchestration.Requirement{}, orchestration.Requirement{})
	if err != nil {
		fmt.Printf("offload: allocation failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Printf("offload: allocated %d agent(s), %d llm(s), %d task(s)\n", len(alloc.Agents), len(alloc.LLMs), len(alloc.Tasks))

	if err := manager.ReleaseResources(alloc); err != nil {
		fmt.Printf("offload: release failed: %v\n", err)
		return exitRuntimeFailure
	}

	after := manager.Agents.AvailableCount()
	fmt.Printf("offload: available agents after release: %d\n", after)
	if after != before {
		fmt.Println("offload: pool did not return to its pre-allocation state")
		return exitRuntimeFailure
	}
	return exitSuccess
}

func haltProgram() []byte {
	return runtime.NewAssembler().Push(0).Halt().Bytes()
}
