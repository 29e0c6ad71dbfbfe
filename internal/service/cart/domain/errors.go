package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCartOperation   = errors.New("invalid cart operation")
	ErrCartNotFound           = errors.New("cart not found")
	ErrConcurrentModification = errors.New("cart was modified concurrently")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidCartOperation, fmt.Sprintf(format, args...))
}
