package appointment

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "ValidationError"
	KindNotFound     ErrorKind = "NotFoundError"
	KindInvalidState ErrorKind = "InvalidStateError"
	KindInternal     ErrorKind = "InternalError"
)

// Error is the typed failure every command returns. Two errors match under
// errors.Is when their kinds match and the target carries no message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidState = &Error{Kind: KindInvalidState}

	ErrPatientNotFound          = &Error{Kind: KindNotFound, Message: "patient not found"}
	ErrTherapistNotFound        = &Error{Kind: KindNotFound, Message: "therapist not found"}
	ErrAppointmentNotFound      = &Error{Kind: KindNotFound, Message: "appointment not found"}
	ErrWaitingListEntryNotFound = &Error{Kind: KindNotFound, Message: "waiting list entry not found"}
	ErrFeedbackNotFound         = &Error{Kind: KindNotFound, Message: "feedback not found"}

	ErrFeedbackExists = &Error{Kind: KindInvalidState, Message: "feedback already submitted for this appointment"}
)

func validationErrorf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func invalidStateErrorf(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the taxonomy kind of err. Anything outside the taxonomy is internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
