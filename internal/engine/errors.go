package engine

import (
	"fmt"
	"strings"

	"github.com/splitlab/splitlab/internal/store"
)

// ValidationError carries every constraint a test spec violated, so callers
// can fix them all in one round trip. Nothing is persisted when it is
// returned.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid test spec: " + strings.Join(e.Violations, "; ")
}

// InvalidStateError signals an operation attempted in a lifecycle state that
// forbids it.
type InvalidStateError struct {
	Op     string
	Status store.TestStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s test in state %q", e.Op, e.Status)
}
