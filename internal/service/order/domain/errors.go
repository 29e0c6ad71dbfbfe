// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrderOperation       = errors.New("invalid order operation")
	ErrInvalidOrderStateTransition = errors.New("invalid order state transition")
	ErrOrderNotFound               = errors.New("order not found")
	ErrConcurrentModification      = errors.New("order was modified concurrently")
)

// InvalidStateTransitionError 记录被拒绝的迁移。
type InvalidStateTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidOrderStateTransition
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrderOperation, fmt.Sprintf(format, args...))
}
