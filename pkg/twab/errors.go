package twab

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInterval is returned when an interval does not satisfy start < end.
	ErrInvalidInterval = errors.New("invalid interval: end must be greater than start")
	// ErrDivisionByZero is returned when a set of step segments carries no weight.
	ErrDivisionByZero = errors.New("weighted average: total weight is zero")
)

// MalformedEventError reports a change event that cannot be used.
type MalformedEventError struct {
	Address  string
	Position uint64
	Reason   string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed change event for %q at position %d: %s", e.Address, e.Position, e.Reason)
}
