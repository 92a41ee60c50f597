package resolver

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("patient not found in any module")

// NotFoundError reports a miss together with the sources that could not be
// queried, so "absent" can be told apart from "unreachable".
type NotFoundError struct {
	PatientID   string
	Unavailable []Source
}

func (e *NotFoundError) Error() string {
	if len(e.Unavailable) == 0 {
		return fmt.Sprintf("patient %q not found in any module", e.PatientID)
	}
	return fmt.Sprintf("patient %q not found; unavailable sources: %v", e.PatientID, e.Unavailable)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
