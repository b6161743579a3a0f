package service

import (
	"errors"

	"confreg/internal/payment/gateway"
	"confreg/internal/receipt/email"
	"confreg/internal/receipt/pdf"
	dErrors "confreg/pkg/domain-errors"
)

// Pipeline errors. Only ErrRegistrationNotFound and ErrAlreadyProcessing
// abort a run; the others are recorded on the Result.
var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRendererUnavailable  = pdf.ErrUnavailable
	ErrEmailDelivery        = email.ErrDelivery
	ErrStoreWrite           = errors.New("store write failed")
	ErrAlreadyProcessing    = errors.New("receipt processing already in progress")
	ErrNoRecipient          = errors.New("no email address for registration")
)

// captureError maps a gateway failure to a coded error for the transport.
func captureError(err error) error {
	var ge *gateway.Error
	if !errors.As(err, &ge) {
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "payment capture failed")
	}
	msg := func(fallback string) string {
		if ge.Message != "" {
			return ge.Message
		}
		return fallback
	}
	switch ge.Kind {
	case gateway.KindVerification:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, msg("payment verification failed"))
	case gateway.KindAuth:
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "payment gateway authentication failed")
	case gateway.KindConfiguration:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg("payment gateway not configured"))
	default:
		return dErrors.Wrap(err, dErrors.CodeBadGateway, msg("payment capture failed"))
	}
}
