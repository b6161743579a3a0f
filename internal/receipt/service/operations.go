package service

import (
	"context"
	"errors"
	"fmt"

	"confreg/internal/payment/gateway"
	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/pdf"
	registration "confreg/internal/registration/models"
	dErrors "confreg/pkg/domain-errors"
	"confreg/pkg/platform/sentinel"
	"confreg/pkg/requestcontext"
)

// Status reports the processing flags stored on a registration.
func (o *Orchestrator) Status(ctx context.Context, registrationID string) (*StatusView, error) {
	reg, err := o.lookup(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		RegistrationID:   reg.RegistrationID,
		PaymentCompleted: reg.PaymentStatus == registration.PaymentCompleted,
		PaymentStatus:    string(reg.PaymentStatus),
		PaymentMethod:    reg.PaymentMethod,
		EmailSent:        reg.ReceiptEmailSent,
		EmailSentAt:      reg.ReceiptEmailSentAt,
		EmailRecipient:   reg.ReceiptEmailRecipient,
		PDFGenerated:     reg.PDFReceiptGenerated,
		PDFStored:        reg.PDFReceiptStoredInSanity,
		PDFAssetID:       reg.PDFReceipt.AssetID(),
		WebhookProcessed: reg.WebhookProcessed,
		LastResult:       string(reg.LastAutomaticProcessingResult),
		LastUpdated:      reg.LastUpdated,
	}
	if view.PaymentMethod == "" {
		view.PaymentMethod = "unknown"
	}
	return view, nil
}

// Retry re-runs the pipeline from the payment data stored on the
// registration. recipient overrides the registration's email when set.
func (o *Orchestrator) Retry(ctx context.Context, registrationID string, force bool, recipient string) (*Result, error) {
	reg, err := o.lookup(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	to := firstNonBlank(recipient, reg.PersonalDetails.Email)
	if to == "" {
		return nil, dErrors.Wrap(ErrNoRecipient, dErrors.CodeBadRequest, "No email address found for registration")
	}
	ev := payment.FromStored(reg.StoredPayment(), requestcontext.Now(ctx))
	return o.Process(ctx, ProcessRequest{
		RegistrationID: registrationID,
		Method:         ev.Method,
		CustomerEmail:  to,
		ForceRetry:     force,
		Event:          &ev,
	})
}

// CaptureAndProcess captures the payment with its gateway, then runs the
// receipt pipeline. Only capture failures are returned as errors.
func (o *Orchestrator) CaptureAndProcess(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if o.gateway == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "payment gateway not configured")
	}
	if req.RegistrationID == "" || req.OrderID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registrationId and orderId are required")
	}
	ev, err := o.gateway.Capture(ctx, gateway.CaptureRequest{
		Method:         req.Method,
		RegistrationID: req.RegistrationID,
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		var ge *gateway.Error
		if errors.As(err, &ge) {
			o.logger.ErrorContext(ctx, "payment capture failed",
				"registration_id", req.RegistrationID,
				"order_id", req.OrderID,
				"gateway", ge.Gateway,
				"kind", ge.Kind,
				"status", ge.Status,
				"raw", ge.Raw,
			)
		}
		return nil, captureError(err)
	}
	o.logger.InfoContext(ctx, "payment captured",
		"registration_id", req.RegistrationID,
		"transaction_id", ev.TransactionID,
		"method", ev.Method,
	)

	out := &CaptureResult{Event: ev}
	res, perr := o.Process(ctx, ProcessRequest{
		RegistrationID: req.RegistrationID,
		Method:         ev.Method,
		CustomerEmail:  req.CustomerEmail,
		Event:          &ev,
	})
	if perr != nil {
		o.logger.WarnContext(ctx, "receipt pipeline did not complete after capture",
			"registration_id", req.RegistrationID,
			"transaction_id", ev.TransactionID,
			"error", perr,
		)
		out.ReceiptErr = perr
		return out, nil
	}
	out.Receipt = res
	return out, nil
}

// MarkPaymentFailed records a declined or failed payment on the
// registration. It runs under the registration lease so it cannot
// interleave with a receipt run.
func (o *Orchestrator) MarkPaymentFailed(ctx context.Context, f PaymentFailure) (*FailureResult, error) {
	reg, err := o.lookup(ctx, f.RegistrationID)
	if err != nil {
		return nil, err
	}
	log := o.logger.With(
		"registration_id", f.RegistrationID,
		"payment_id", f.PaymentID,
		"method", f.Method,
		"request_id", requestcontext.RequestID(ctx),
	)
	out := &FailureResult{RegistrationID: f.RegistrationID, PaymentStatus: string(reg.PaymentStatus)}
	if reg.PaymentStatus == registration.PaymentCompleted {
		log.WarnContext(ctx, "payment failure ignored, registration already paid")
		return out, nil
	}

	release, err := o.acquire(ctx, log, f.RegistrationID)
	if err != nil {
		return nil, err
	}
	defer release()

	patch := registration.FailedPaymentPatch(f.Method, f.PaymentID, f.Reason, requestcontext.Now(ctx))
	if err := o.registrations.Patch(ctx, reg.DocumentID, patch); err != nil {
		return nil, dErrors.Wrap(fmt.Errorf("%w: payment failure: %w", ErrStoreWrite, err), dErrors.CodeUnavailable, "registration update failed")
	}
	o.metrics.ObserveRun(outcomePaymentFailed, f.Method.String())
	log.InfoContext(ctx, "payment marked failed", "reason", f.Reason)
	out.Applied = true
	out.PaymentStatus = string(registration.PaymentFailed)
	return out, nil
}

// RenderReceipt renders the receipt for the payment stored on a
// registration without sending or storing it.
func (o *Orchestrator) RenderReceipt(ctx context.Context, registrationID string) ([]byte, string, error) {
	reg, err := o.lookup(ctx, registrationID)
	if err != nil {
		return nil, "", err
	}
	now := requestcontext.Now(ctx)
	ev := payment.FromStored(reg.StoredPayment(), now)
	out, err := o.renderer.Render(ctx, ev, reg, o.settings.Get(ctx), now)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeUnavailable, "receipt renderer unavailable")
	}
	return out, pdf.AttachmentName(ev.TransactionID), nil
}

func (o *Orchestrator) lookup(ctx context.Context, registrationID string) (*registration.Registration, error) {
	if registrationID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registrationId is required")
	}
	reg, err := o.registrations.Lookup(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(fmt.Errorf("%w: %w", ErrRegistrationNotFound, err), dErrors.CodeNotFound, "Registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "registration lookup failed")
	}
	return reg, nil
}
