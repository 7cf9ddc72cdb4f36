package classify

import (
	"context"
	"errors"
	"fmt"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classify: status %d: %s", e.Status, e.Detail)
}

// MalformedError is returned when a 2xx body cannot be decoded into a verdict.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "classify: malformed response: " + e.Reason
}

// Message turns a classification error into text fit for a popup.
func Message(err error) string {
	var se *StatusError
	var me *MalformedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Detail
	case errors.As(err, &me):
		return "The classifier returned an unexpected response"
	case errors.Is(err, context.DeadlineExceeded):
		return "The classifier did not answer in time"
	case errors.Is(err, context.Canceled):
		return "Check cancelled"
	}
	return "Failed to check link"
}
