package pattern

import "fmt"

// PatternNotFoundError is returned when an operation references an id that
// does not exist in the store.
type PatternNotFoundError struct {
	ID string
}

func (e *PatternNotFoundError) Error() string {
	return fmt.Sprintf("pattern not found: %s", e.ID)
}

// PatternAlreadyExistsError is returned on a duplicate add.
type PatternAlreadyExistsError struct {
	ID string
}

func (e *PatternAlreadyExistsError) Error() string {
	return fmt.Sprintf("pattern already exists: %s", e.ID)
}

// InvalidStatusTransitionError is returned when a status change is not
// permitted by the transition table. It carries both statuses for
// diagnostics.
type InvalidStatusTransitionError struct {
	PatternID  string
	FromStatus Status
	ToStatus   Status
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s: %s -> %s", e.PatternID, e.FromStatus, e.ToStatus)
}
