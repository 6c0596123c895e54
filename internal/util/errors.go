package util

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer. Every kind except
// KindInternal is terminal for the request; KindInternal is safe to retry.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindNotApproved
	KindBanned
	KindAlreadyCompleted
	KindUnauthorized
	KindInvalidState
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotApproved:
		return "not_approved"
	case KindBanned:
		return "banned"
	case KindAlreadyCompleted:
		return "already_completed"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation_error"
	}
	return "internal"
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrExamNotFound        = newError(KindNotFound, "exam not found")
	ErrQuestionNotFound    = newError(KindNotFound, "question not found")
	ErrAttemptNotFound     = newError(KindNotFound, "attempt not found")
	ErrAnswerNotFound      = newError(KindNotFound, "answer not found")
	ErrAssignmentNotFound  = newError(KindNotFound, "assignment not found")
	ErrFeedbackNotFound    = newError(KindNotFound, "feedback not found")
	ErrCertificateNotFound = newError(KindNotFound, "certificate not found")

	ErrExamNotApproved  = newError(KindNotApproved, "exam is not approved")
	ErrBanned           = newError(KindBanned, "student was removed from this exam for violations")
	ErrAlreadyCompleted = newError(KindAlreadyCompleted, "exam already completed")
	ErrUnauthorized     = newError(KindUnauthorized, "permission denied")

	ErrAttemptNotInProgress  = newError(KindInvalidState, "attempt is not in progress")
	ErrAttemptNotSubmitted   = newError(KindInvalidState, "attempt is not awaiting evaluation")
	ErrAlreadyEvaluated      = newError(KindInvalidState, "attempt already evaluated")
	ErrAttemptNotEvaluated   = newError(KindInvalidState, "attempt has not been evaluated")
	ErrExamLocked            = newError(KindInvalidState, "exam already has attempts")
	ErrInvalidExamTransition = newError(KindInvalidState, "exam status transition not allowed")

	ErrValidation           = newError(KindValidation, "validation error")
	ErrInvalidViolationType = newError(KindValidation, "invalid violation type")
	ErrInvalidMarks         = newError(KindValidation, "marks out of range")
	ErrInvalidRating        = newError(KindValidation, "rating must be between 1 and 5")

	ErrStorage = newError(KindInternal, "storage failure")
)

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}

// Storage tags a persistence-layer failure so callers can tell it apart from
// the terminal domain errors.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// Invalid wraps ErrValidation with a field-level reason.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
