package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinel errors of the hub. Handlers wrap them with context; the wire
// layer classifies negative acknowledgements with Is.
var (
	ErrUnauthenticated = fmt.Errorf("unauthorized")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrNotFound        = fmt.Errorf("not found")
	ErrValidation      = fmt.Errorf("validation failed")
	ErrUpstream        = fmt.Errorf("upstream failure")

	ErrCallNotFound    = fmt.Errorf("call %w", ErrNotFound)
	ErrGroupNotFound   = fmt.Errorf("group %w", ErrNotFound)
	ErrMessageNotFound = fmt.Errorf("message %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrBlocked         = fmt.Errorf("account blocked: %w", ErrUnauthenticated)
)

// Is re-exports errors.Is so callers don't need both packages.
func Is(err, target error) bool { return stderrors.Is(err, target) }

type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }
func (e validationError) Is(target error) bool {
	return target == ErrValidation
}

// Validationf builds a validation error whose text is shown verbatim in
// the acknowledgement, e.g. Validationf("toUserId required").
func Validationf(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// AckMessage maps an error to the short caller-facing message carried in
// a negative acknowledgement. Unexpected errors collapse to a generic
// text so internals never leak to clients.
func AckMessage(err error) string {
	switch {
	case stderrors.Is(err, ErrValidation):
		return err.Error()
	case stderrors.Is(err, ErrForbidden):
		return "Forbidden"
	case stderrors.Is(err, ErrCallNotFound):
		return "Call not found"
	case stderrors.Is(err, ErrGroupNotFound):
		return "Group not found"
	case stderrors.Is(err, ErrMessageNotFound):
		return "Message not found"
	case stderrors.Is(err, ErrNotFound):
		return "Not found"
	case stderrors.Is(err, ErrUnauthenticated):
		return "Unauthorized"
	case stderrors.Is(err, ErrUpstream):
		return "Temporary failure, try again"
	default:
		return "Failed"
	}
}
