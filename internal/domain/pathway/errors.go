package pathway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("pathway entry not found")
	ErrVersionConflict = errors.New("pathway entry was modified concurrently")
	ErrAlreadyExists   = errors.New("pathway entry already exists")
	ErrInvalid         = errors.New("invalid input")
)

type invalidError struct {
	msg string
}

func (e *invalidError) Error() string { return e.msg }

func (e *invalidError) Is(target error) bool { return target == ErrInvalid }

// Invalidf reports a caller mistake. The result matches ErrInvalid with
// errors.Is and keeps the formatted text as its message.
func Invalidf(format string, args ...interface{}) error {
	return &invalidError{msg: fmt.Sprintf(format, args...)}
}

// InvalidClockStateError describes a recoverable clock problem. The engine
// applies its fallbacks and logs this rather than failing.
type InvalidClockStateError struct {
	EntityID uuid.UUID
	Issues   []string
}

func (e *InvalidClockStateError) Error() string {
	return fmt.Sprintf("invalid clock state for %s: %s", e.EntityID, strings.Join(e.Issues, "; "))
}
