package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"

	"confreg/internal/payment/models"
	"confreg/internal/platform/config"
)

// RazorpayPayments is the slice of the Razorpay payments API used here.
type RazorpayPayments interface {
	Fetch(paymentID string) (map[string]any, error)
	Capture(paymentID string, amount int64, currency string) (map[string]any, error)
}

type sdkPayments struct {
	client *razorpay.Client
}

func (s sdkPayments) Fetch(paymentID string) (map[string]any, error) {
	return s.client.Payment.Fetch(paymentID, nil, nil)
}

func (s sdkPayments) Capture(paymentID string, amount int64, currency string) (map[string]any, error) {
	return s.client.Payment.Capture(paymentID, int(amount), map[string]interface{}{"currency": currency}, nil)
}

// Razorpay verifies checkout signatures and captures authorized payments.
type Razorpay struct {
	payments      RazorpayPayments
	keySecret     string
	webhookSecret string
	now           func() time.Time
	logger        *slog.Logger
}

// RazorpayOption configures the Razorpay gateway.
type RazorpayOption func(*Razorpay)

// WithRazorpayPayments replaces the SDK-backed payments API.
func WithRazorpayPayments(p RazorpayPayments) RazorpayOption {
	return func(r *Razorpay) { r.payments = p }
}

// WithRazorpayClock sets the fallback clock for capture timestamps.
func WithRazorpayClock(now func() time.Time) RazorpayOption {
	return func(r *Razorpay) { r.now = now }
}

// WithRazorpayLogger sets the logger.
func WithRazorpayLogger(l *slog.Logger) RazorpayOption {
	return func(r *Razorpay) { r.logger = l }
}

// NewRazorpay builds the gateway over the official SDK.
func NewRazorpay(cfg config.Razorpay, opts ...RazorpayOption) *Razorpay {
	r := &Razorpay{
		payments:      sdkPayments{client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret)},
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VerifySignature checks the checkout signature over "order_id|payment_id".
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifySignature([]byte(orderID+"|"+paymentID), signature, r.keySecret)
}

// VerifyWebhook checks the X-Razorpay-Signature of a webhook body.
func (r *Razorpay) VerifyWebhook(body []byte, signature string) error {
	if r.webhookSecret == "" {
		return &Error{Kind: KindConfiguration, Gateway: models.MethodRazorpay, Message: "webhook secret not configured"}
	}
	if signature == "" || !utils.VerifyWebhookSignature(string(body), signature, r.webhookSecret) {
		return &Error{Kind: KindVerification, Gateway: models.MethodRazorpay, Message: "webhook signature mismatch"}
	}
	return nil
}

// Capture verifies the checkout signature, then fetches the payment and
// captures it when it is only authorized.
func (r *Razorpay) Capture(ctx context.Context, req CaptureRequest) (models.PaymentEvent, error) {
	if !r.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		return models.PaymentEvent{}, &Error{Kind: KindVerification, Gateway: models.MethodRazorpay, Message: "payment signature mismatch"}
	}

	payment, err := r.payments.Fetch(req.PaymentID)
	if err != nil {
		return models.PaymentEvent{}, r.apiError("fetch payment", err)
	}

	status, _ := payment["status"].(string)
	if status == "authorized" {
		amount, ok := paise(payment["amount"])
		if !ok {
			return models.PaymentEvent{}, &Error{Kind: KindCapture, Gateway: models.MethodRazorpay, Message: "payment has no amount", Raw: rawJSON(payment)}
		}
		currency, _ := payment["currency"].(string)
		captured, err := r.payments.Capture(req.PaymentID, amount, currency)
		if err != nil {
			return models.PaymentEvent{}, r.apiError("capture payment", err)
		}
		payment = captured
		status, _ = payment["status"].(string)
		r.logger.InfoContext(ctx, "razorpay payment captured",
			"payment_id", req.PaymentID,
			"registration_id", req.RegistrationID,
		)
	}
	if status != "captured" {
		return models.PaymentEvent{}, &Error{
			Kind:    KindCapture,
			Gateway: models.MethodRazorpay,
			Message: fmt.Sprintf("payment status %q", status),
			Raw:     rawJSON(payment),
		}
	}

	amount := models.ZeroAmount
	if p, ok := paise(payment["amount"]); ok {
		amount = decimal.NewFromInt(p).Shift(-2).StringFixed(2)
	}
	raw := models.RawPayment{
		"paymentId":      req.PaymentID,
		"paymentOrderId": firstNonBlank(stringField(payment, "order_id"), req.OrderID),
		"amount":         amount,
		"currency":       stringField(payment, "currency"),
		"status":         status,
	}
	if created, ok := paise(payment["created_at"]); ok && created > 0 {
		raw["capturedAt"] = time.Unix(created, 0).UTC().Format(time.RFC3339)
	}
	return models.Normalize(models.MethodRazorpay, raw, r.now().UTC()), nil
}

func (r *Razorpay) apiError(op string, err error) error {
	kind := KindCapture
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "authentication") {
		kind = KindAuth
	}
	return &Error{Kind: kind, Gateway: models.MethodRazorpay, Message: op + " failed", Raw: msg, Err: err}
}

// paise reads an integer JSON field the SDK decoded as float64.
func paise(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func rawJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
