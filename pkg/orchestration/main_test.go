package orchestration

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that the planning session's errgroup-based parallel
// feedback phase (§4.2.2 step 3) and the resource manager's allocation
// semaphore never leak a goroutine past test completion.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
