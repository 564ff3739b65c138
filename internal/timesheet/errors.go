package timesheet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is matched by every lifecycle guard failure.
	ErrInvalidState = errors.New("invalid timesheet state")

	ErrNotFound      = errors.New("Timesheet not found")
	ErrEntryNotFound = errors.New("Time entry not found")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrVersionConflict means another writer saved the timesheet first.
	ErrVersionConflict = errors.New("timesheet was modified concurrently")

	// ErrStorageUnavailable marks transient backend failures worth retrying.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Guard failure messages.
const (
	msgCannotEdit      = "Cannot edit a submitted timesheet"
	msgSubmitNotDraft  = "Only draft timesheets can be submitted"
	msgSubmitNoHours   = "Cannot submit a timesheet with no hours"
	msgApproveNotSubm  = "Only submitted timesheets can be approved"
	msgRejectNotSubm   = "Only submitted timesheets can be rejected"
	msgRevertNotReject = "Only rejected timesheets can be reverted to draft"
	msgDeleteNotDraft  = "Only draft timesheets can be deleted"
)

// StateError reports a transition attempted from the wrong state.
type StateError struct {
	Op      string
	Status  Status
	Message string
}

func (e *StateError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrInvalidState) match any StateError.
func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

func stateError(op string, status Status, msg string) error {
	return &StateError{Op: op, Status: status, Message: msg}
}

// InputError reports a rejected field value.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func inputError(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a caller-facing validation or state
// error whose message is safe to show, as opposed to an infrastructure failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrVersionConflict)
}

// Message returns the user-facing text for a validation error.
func Message(err error) string {
	var se *StateError
	if errors.As(err, &se) {
		return se.Message
	}
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrEntryNotFound):
		return ErrEntryNotFound.Error()
	case errors.Is(err, ErrVersionConflict):
		return "Timesheet was changed by someone else, please retry"
	}
	return err.Error()
}
