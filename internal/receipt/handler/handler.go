// Package handler exposes the receipt pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	payment "confreg/internal/payment/models"
	"confreg/internal/platform/metrics"
	"confreg/internal/platform/middleware"
	"confreg/internal/receipt/service"
	dErrors "confreg/pkg/domain-errors"
	"confreg/pkg/platform/httputil"
)

// Service is the orchestrator surface used by the endpoints.
type Service interface {
	Process(ctx context.Context, req service.ProcessRequest) (*service.Result, error)
	Status(ctx context.Context, registrationID string) (*service.StatusView, error)
	Retry(ctx context.Context, registrationID string, force bool, recipient string) (*service.Result, error)
	CaptureAndProcess(ctx context.Context, req service.CaptureRequest) (*service.CaptureResult, error)
	MarkPaymentFailed(ctx context.Context, f service.PaymentFailure) (*service.FailureResult, error)
	RenderReceipt(ctx context.Context, registrationID string) ([]byte, string, error)
}

// WebhookVerifier checks a gateway webhook signature over the raw body.
type WebhookVerifier interface {
	VerifyWebhook(body []byte, signature string) error
}

// PayPalWebhookVerifier checks a PayPal delivery using its transmission
// headers.
type PayPalWebhookVerifier interface {
	VerifyWebhook(ctx context.Context, header http.Header, body []byte) error
}

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	maxBodyBytes            = 1 << 20
)

// Webhook event names acted on; every other event is acknowledged.
const (
	razorpayPaymentCaptured = "payment.captured"
	razorpayPaymentFailed   = "payment.failed"
	payPalCaptureCompleted  = "PAYMENT.CAPTURE.COMPLETED"
	payPalCaptureDenied     = "PAYMENT.CAPTURE.DENIED"
)

// Handler serves payment completion, status and capture endpoints.
type Handler struct {
	logger     *slog.Logger
	receipts   Service
	metrics    *metrics.Metrics
	webhooks   WebhookVerifier
	paypalHook PayPalWebhookVerifier
	adminToken string
	timeout    time.Duration
	validate   *validator.Validate
}

type Option func(*Handler)

// WithWebhookVerifier enables POST /razorpay/webhook.
func WithWebhookVerifier(v WebhookVerifier) Option {
	return func(h *Handler) { h.webhooks = v }
}

// WithPayPalWebhookVerifier enables POST /paypal/webhook.
func WithPayPalWebhookVerifier(v PayPalWebhookVerifier) Option {
	return func(h *Handler) { h.paypalHook = v }
}

// WithAdminToken protects the resend endpoint. Without it the endpoint
// rejects every call.
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.adminToken = token }
}

func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func New(receipts Service, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	h := &Handler{
		logger:   logger,
		receipts: receipts,
		metrics:  m,
		timeout:  90 * time.Second,
		validate: v,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(h.timeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))

	router.Post("/payment/process-completion", h.handleProcessCompletion)
	router.Get("/payment/process-completion", h.handleStatus)
	router.Put("/payment/process-completion", h.handleRetry)
	router.Post("/paypal/capture-order", h.handlePayPalCapture)
	router.Post("/razorpay/verify-payment", h.handleRazorpayVerify)
	if h.webhooks != nil {
		router.Post("/razorpay/webhook", h.handleRazorpayWebhook)
	}
	if h.paypalHook != nil {
		router.Post("/paypal/webhook", h.handlePayPalWebhook)
	}
	router.Get("/registration/receipt-pdf", h.handleReceiptPDF)
	router.Post("/registration/receipt-pdf", h.handleReceiptPDF)
	router.With(middleware.RequireAdminToken(h.adminToken, h.logger)).
		Post("/payment/resend-receipt", h.handleResend)

	r.Mount("/", router)
}

func (h *Handler) handleProcessCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req processCompletionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.WarnContext(ctx, "invalid process-completion request",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.writeValidation(w, err, "registrationId", "paymentData", "paymentMethod")
		return
	}
	method, err := payment.ParseMethod(req.PaymentMethod)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, failureResponse{Error: "Invalid payment method"})
		return
	}

	res, err := h.receipts.Process(ctx, service.ProcessRequest{
		RegistrationID: req.RegistrationID,
		Payment:        req.PaymentData,
		Method:         method,
		CustomerEmail:  req.CustomerEmail,
		ForceRetry:     req.ForceRetry,
	})
	if err != nil {
		h.writeFailure(ctx, w, req.RegistrationID, err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrationID := strings.TrimSpace(r.URL.Query().Get("registrationId"))
	if registrationID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, failureResponse{
			Error:    "Registration ID is required",
			Required: []string{"registrationId"},
		})
		return
	}
	view, err := h.receipts.Status(ctx, registrationID)
	if err != nil {
		h.writeFailure(ctx, w, registrationID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(view))
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.retry(w, r, req, req.ForceRetry)
}

// handleResend is the operator path: always forced.
func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.logger.InfoContext(r.Context(), "manual receipt resend requested",
		"request_id", middleware.GetRequestID(r.Context()),
		"registration_id", req.RegistrationID,
		"client_ip", middleware.ClientIPFromRequest(r),
	)
	h.retry(w, r, req, true)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request, req retryRequest, force bool) {
	ctx := r.Context()
	if err := h.validate.Struct(req); err != nil {
		h.writeValidation(w, err, "registrationId")
		return
	}
	res, err := h.receipts.Retry(ctx, req.RegistrationID, force, req.CustomerEmail)
	if err != nil {
		h.writeFailure(ctx, w, req.RegistrationID, err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handlePayPalCapture(w http.ResponseWriter, r *http.Request) {
	var req payPalCaptureRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeValidation(w, err, "orderId", "registrationId")
		return
	}
	h.capture(w, r, service.CaptureRequest{
		Method:         payment.MethodPayPal,
		RegistrationID: req.RegistrationID,
		OrderID:        req.OrderID,
		CustomerEmail:  req.CustomerEmail,
	})
}

func (h *Handler) handleRazorpayVerify(w http.ResponseWriter, r *http.Request) {
	var req razorpayVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeValidation(w, err, "razorpay_order_id", "razorpay_payment_id", "razorpay_signature", "registrationId")
		return
	}
	h.capture(w, r, service.CaptureRequest{
		Method:         payment.MethodRazorpay,
		RegistrationID: req.RegistrationID,
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
		CustomerEmail:  req.CustomerEmail,
	})
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request, req service.CaptureRequest) {
	ctx := r.Context()
	out, err := h.receipts.CaptureAndProcess(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "payment capture failed",
			"request_id", middleware.GetRequestID(ctx),
			"registration_id", req.RegistrationID,
			"order_id", req.OrderID,
			"method", req.Method,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaptureResponse(out))
}

// handleRazorpayWebhook runs the pipeline for payment.captured deliveries and
// marks the registration failed for payment.failed. Every other event is
// acknowledged and ignored.
func (h *Handler) handleRazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if err := h.webhooks.VerifyWebhook(body, r.Header.Get(razorpaySignatureHeader)); err != nil {
		h.rejectWebhook(ctx, w, "razorpay", err)
		return
	}

	var hook razorpayWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid webhook payload"))
		return
	}
	entity := hook.Payload.Payment.Entity
	registrationID := entity.Notes["registrationId"]
	if registrationID == "" {
		h.ignoreWebhook(w, hook.Event)
		return
	}

	switch hook.Event {
	case razorpayPaymentCaptured:
		res, err := h.receipts.Process(ctx, service.ProcessRequest{
			RegistrationID: registrationID,
			Method:         payment.MethodRazorpay,
			CustomerEmail:  entity.Email,
			Payment: payment.RawPayment{
				"paymentId": entity.ID,
				"orderId":   entity.OrderID,
				"amount":    decimal.New(entity.Amount, -2).StringFixed(2),
				"currency":  entity.Currency,
				"status":    entity.Status,
			},
		})
		if err != nil {
			h.writeFailure(ctx, w, registrationID, err)
			return
		}
		h.writeResult(w, res)
	case razorpayPaymentFailed:
		h.markFailed(w, r, hook.Event, service.PaymentFailure{
			RegistrationID: registrationID,
			Method:         payment.MethodRazorpay,
			PaymentID:      entity.ID,
			Reason:         firstNonEmpty(entity.ErrorDescription, entity.ErrorReason, entity.ErrorCode),
		})
	default:
		h.ignoreWebhook(w, hook.Event)
	}
}

// handlePayPalWebhook runs the pipeline for completed captures and marks the
// registration failed for denied ones. The capture's custom_id carries the
// registration id.
func (h *Handler) handlePayPalWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if err := h.paypalHook.VerifyWebhook(ctx, r.Header, body); err != nil {
		h.rejectWebhook(ctx, w, "paypal", err)
		return
	}

	var hook payPalWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid webhook payload"))
		return
	}
	capture := hook.Resource
	if capture.CustomID == "" {
		h.ignoreWebhook(w, hook.EventType)
		return
	}

	switch hook.EventType {
	case payPalCaptureCompleted:
		res, err := h.receipts.Process(ctx, service.ProcessRequest{
			RegistrationID: capture.CustomID,
			Method:         payment.MethodPayPal,
			Payment: payment.RawPayment{
				"transactionId": capture.ID,
				"orderId":       capture.SupplementaryData.RelatedIDs.OrderID,
				"amount":        capture.Amount.Value,
				"currency":      capture.Amount.CurrencyCode,
				"status":        capture.Status,
				"capturedAt":    capture.CreateTime,
			},
		})
		if err != nil {
			h.writeFailure(ctx, w, capture.CustomID, err)
			return
		}
		h.writeResult(w, res)
	case payPalCaptureDenied:
		h.markFailed(w, r, hook.EventType, service.PaymentFailure{
			RegistrationID: capture.CustomID,
			Method:         payment.MethodPayPal,
			PaymentID:      capture.ID,
			Reason:         firstNonEmpty(capture.StatusDetails.Reason, "Payment denied"),
		})
	default:
		h.ignoreWebhook(w, hook.EventType)
	}
}

func (h *Handler) markFailed(w http.ResponseWriter, r *http.Request, event string, f service.PaymentFailure) {
	ctx := r.Context()
	out, err := h.receipts.MarkPaymentFailed(ctx, f)
	if err != nil {
		h.writeFailure(ctx, w, f.RegistrationID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, webhookAck{
		Received:       true,
		Event:          event,
		RegistrationID: out.RegistrationID,
		PaymentStatus:  out.PaymentStatus,
		Ignored:        !out.Applied,
	})
}

func (h *Handler) ignoreWebhook(w http.ResponseWriter, event string) {
	httputil.WriteJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: true, Event: event})
}

func (h *Handler) rejectWebhook(ctx context.Context, w http.ResponseWriter, gw string, err error) {
	h.logger.WarnContext(ctx, "webhook rejected",
		"request_id", middleware.GetRequestID(ctx),
		"gateway", gw,
		"error", err.Error(),
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid webhook signature"))
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable body"))
		return nil, false
	}
	return body, true
}

// handleReceiptPDF streams the receipt for the payment stored on a
// registration. GET reads registrationId from the query, POST from the body.
func (h *Handler) handleReceiptPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrationID := strings.TrimSpace(r.URL.Query().Get("registrationId"))
	if r.Method == http.MethodPost {
		var req receiptPDFRequest
		if !h.decode(w, r, &req) {
			return
		}
		registrationID = strings.TrimSpace(req.RegistrationID)
	}
	if registrationID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, failureResponse{
			Error:    "Registration ID is required",
			Required: []string{"registrationId"},
		})
		return
	}

	doc, filename, err := h.receipts.RenderReceipt(ctx, registrationID)
	if err != nil {
		h.writeFailure(ctx, w, registrationID, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusBadRequest, failureResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// writeValidation lists every required field when one is missing, and names
// the offending field otherwise.
func (h *Handler) writeValidation(w http.ResponseWriter, err error, required ...string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		httputil.WriteJSON(w, http.StatusBadRequest, failureResponse{Error: "Invalid request"})
		return
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			httputil.WriteJSON(w, http.StatusBadRequest, failureResponse{
				Error:    "Missing required parameters",
				Required: required,
			})
			return
		}
	}
	fe := verrs[0]
	httputil.WriteJSON(w, http.StatusBadRequest, failureResponse{Error: "Invalid " + fe.Field()})
}

func (h *Handler) writeResult(w http.ResponseWriter, res *service.Result) {
	if res.AlreadyProcessed {
		httputil.WriteJSON(w, http.StatusOK, alreadyProcessedResponse{
			Success:          true,
			Message:          "Receipt already processed",
			AlreadyProcessed: true,
			TransactionID:    res.TransactionID,
		})
		return
	}
	msg := "Payment processed and receipt sent"
	if !res.EmailSent {
		msg = "Payment recorded; receipt email could not be sent"
	}
	httputil.WriteJSON(w, http.StatusOK, processCompletionResponse{
		Success:       true,
		Message:       msg,
		TransactionID: res.TransactionID,
		EmailSent:     res.EmailSent,
		PDFGenerated:  res.PDFGenerated,
		PDFUploaded:   res.PDFUploaded,
		Data:          toReceiptData(res),
	})
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, registrationID string, err error) {
	log := h.logger.With("request_id", middleware.GetRequestID(ctx), "registration_id", registrationID)
	code := dErrors.GetCode(err)
	switch code {
	case dErrors.CodeNotFound:
		log.WarnContext(ctx, "registration not found")
		httputil.WriteJSON(w, http.StatusNotFound, failureResponse{
			Error:          "Registration not found",
			RegistrationID: registrationID,
		})
	case dErrors.CodeInternal:
		log.ErrorContext(ctx, "receipt processing failed", "error", err.Error())
		httputil.WriteJSON(w, http.StatusInternalServerError, internalErrorResponse{
			Error:   "Internal server error",
			Details: "receipt processing failed",
		})
	default:
		log.WarnContext(ctx, "receipt request rejected", "code", code, "error", err.Error())
		var de *dErrors.Error
		msg := string(code)
		if errors.As(err, &de) {
			msg = de.Message
		}
		httputil.WriteJSON(w, httputil.StatusFor(code), failureResponse{
			Error:          msg,
			RegistrationID: registrationID,
		})
	}
}
