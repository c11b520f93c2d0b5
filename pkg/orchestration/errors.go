// Package orchestration implements the resource scheduler and planning
// session loop (C2): resource pools with pluggable allocation strategies,
// and an iterative propose/feedback/assess/score planning loop with
// plateau detection.
package orchestration

import (
	"errors"
	"fmt"
)

// Sentinel errors for the Orchestration taxonomy (§7), following the same
// sentinel+typed-wrapper pattern the teacher uses in pkg/services/errors.go.
var (
	ErrResourceAllocation  = errors.New("orchestration: resource allocation error")
	ErrConfiguration       = errors.New("orchestration: configuration error")
	ErrTimeout             = errors.New("orchestration: timeout")
	ErrAgentOperationFailed = errors.New("orchestration: agent operation failed")
	ErrResourceNotFound    = errors.New("orchestration: resource not found")
	ErrTaskExecutionFailed = errors.New("orchestration: task execution failed")
	ErrLLMProcessingFailed = errors.New("orchestration: llm processing failed")
	ErrRefinementStalled   = errors.New("orchestration: refinement stalled")
)

// ResourceAllocationError reports a double-allocation, double-release, or
// capacity-exceeded condition for a specific pool and resource.
type ResourceAllocationError struct {
	PoolKind   string
	ResourceID string
	Reason     string
}

func (e *ResourceAllocationError) Error() string {
	return fmt.Sprintf("orchestration: %s pool resource %q: %s", e.PoolKind, e.ResourceID, e.Reason)
}

func (e *ResourceAllocationError) Unwrap() error { return ErrResourceAllocation }

// ConfigurationError reports an invalid session configuration (bad limit,
// unknown strategy name, etc).
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("orchestration: configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ResourceNotFoundError reports a lookup for an unknown resource ID.
type ResourceNotFoundError struct {
	PoolKind   string
	ResourceID string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("orchestration: %s pool has no resource %q", e.PoolKind, e.ResourceID)
}

func (e *ResourceNotFoundError) Unwrap() error { return ErrResourceNotFound }

// RefinementStalledError reports that a refinement proposal did not
// change the `details` subobject, per §4.2.2.
type RefinementStalledError struct {
	SessionID string
}

func (e *RefinementStalledError) Error() string {
	return fmt.Sprintf("orchestration: session %q: refinement did not change proposal details", e.SessionID)
}

func (e *RefinementStalledError) Unwrap() error { return ErrRefinementStalled }
