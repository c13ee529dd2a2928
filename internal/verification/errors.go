package verification

import (
	"errors"
	"fmt"

	"github.com/signalix/smsverify/internal/locale"
)

// Error kinds. Every error returned by Service matches exactly one of them with errors.Is.
var (
	ErrInvalidLanguageCode = locale.ErrInvalidLanguageCode
	ErrAlreadyPending      = errors.New("verification already pending")
	ErrInternal            = errors.New("internal error")
	ErrVerificationFailed  = errors.New("verification failed")
)

// Error is a typed failure carrying the caller-facing message already translated
// into the request's language.
type Error struct {
	Kind    error
	Key     string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.cause)
	}
	return e.Kind.Error()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.cause }

// MessageKey returns the catalog key for an error kind.
func MessageKey(err error) string {
	switch {
	case errors.Is(err, ErrInvalidLanguageCode):
		return locale.KeyInvalidLanguageCode
	case errors.Is(err, ErrAlreadyPending):
		return locale.KeyVerificationAlreadyExists
	case errors.Is(err, ErrVerificationFailed):
		return locale.KeySMSVerificationFailed
	default:
		return locale.KeySMSSendFailed
	}
}
