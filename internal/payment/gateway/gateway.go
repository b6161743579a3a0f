// Package gateway captures and verifies payments with PayPal and Razorpay and
// returns them as normalized PaymentEvents.
package gateway

import (
	"context"
	"fmt"

	"confreg/internal/payment/models"
)

// CaptureRequest identifies one payment to capture. PayPal uses OrderID;
// Razorpay uses OrderID, PaymentID and Signature.
type CaptureRequest struct {
	Method         models.Method
	RegistrationID string
	OrderID        string
	PaymentID      string
	Signature      string
}

// Capturer finalizes a payment with its gateway. Capture is not idempotent
// on the gateway side; callers must not repeat it for the same order.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (models.PaymentEvent, error)
}

// Set dispatches to the capturer registered for the request's method.
type Set struct {
	capturers map[models.Method]Capturer
}

// NewSet builds a dispatcher; nil capturers are skipped.
func NewSet(paypal, razorpay Capturer) *Set {
	s := &Set{capturers: map[models.Method]Capturer{}}
	if paypal != nil {
		s.capturers[models.MethodPayPal] = paypal
	}
	if razorpay != nil {
		s.capturers[models.MethodRazorpay] = razorpay
	}
	return s
}

func (s *Set) Capture(ctx context.Context, req CaptureRequest) (models.PaymentEvent, error) {
	c, ok := s.capturers[req.Method]
	if !ok {
		return models.PaymentEvent{}, &Error{
			Kind:    KindConfiguration,
			Gateway: req.Method,
			Message: fmt.Sprintf("no gateway configured for %q", req.Method),
		}
	}
	return c.Capture(ctx, req)
}
