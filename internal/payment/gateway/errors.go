package gateway

import (
	"errors"
	"fmt"

	"confreg/internal/payment/models"
)

// Kind classifies gateway failures.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindCapture       Kind = "capture"
	KindVerification  Kind = "verification"
	KindConfiguration Kind = "configuration"
)

// Error is the normalized failure of a gateway call. Raw keeps the gateway's
// response body for diagnostics.
type Error struct {
	Kind    Kind
	Gateway models.Method
	Status  int
	Message string
	Raw     string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Gateway, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsAuthError reports a failed credential exchange.
func IsAuthError(err error) bool { return kindOf(err) == KindAuth }

// IsCaptureError reports a non-success capture response.
func IsCaptureError(err error) bool { return kindOf(err) == KindCapture }

// IsVerificationError reports a payment signature that did not verify.
func IsVerificationError(err error) bool { return kindOf(err) == KindVerification }
