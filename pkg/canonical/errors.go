package canonical

import (
	"errors"
	"fmt"
)

// Sentinel errors for the Canonical taxonomy (§7).
var (
	ErrPlanInvalid     = errors.New("canonical: plan invalid")
	ErrPlanApplyFailed = errors.New("canonical: plan apply failed")
	ErrDB              = errors.New("canonical: database error")
)

// PlanInvalidError names the specific validation failure from §4.3.1's
// Stage B validation rules.
type PlanInvalidError struct {
	Reason string
}

func (e *PlanInvalidError) Error() string       { return fmt.Sprintf("canonical: plan invalid: %s", e.Reason) }
func (e *PlanInvalidError) Unwrap() error        { return ErrPlanInvalid }

// PlanApplyFailedError reports that Apply produced zero applied items
// despite attempting at least one (§4.3.1: "require at least one applied
// item or return an apply error").
type PlanApplyFailedError struct {
	Attempted int
}

func (e *PlanApplyFailedError) Error() string {
	return fmt.Sprintf("canonical: plan apply failed: %d items attempted, 0 applied", e.Attempted)
}

func (e *PlanApplyFailedError) Unwrap() error { return ErrPlanApplyFailed }

// DBError wraps an underlying store failure.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string { return fmt.Sprintf("canonical: db error during %s: %v", e.Op, e.Err) }
func (e *DBError) Unwrap() error { return ErrDB }
