package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Method identifies the gateway that captured a payment.
type Method string

const (
	MethodPayPal   Method = "paypal"
	MethodRazorpay Method = "razorpay"
)

// ParseMethod accepts either method name in any case.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodPayPal:
		return MethodPayPal, nil
	case MethodRazorpay:
		return MethodRazorpay, nil
	default:
		return "", fmt.Errorf("unsupported payment method %q", s)
	}
}

// DefaultCurrency is used when the gateway payload carries none.
func (m Method) DefaultCurrency() string {
	if m == MethodRazorpay {
		return "INR"
	}
	return "USD"
}

func (m Method) String() string { return string(m) }

// ZeroAmount is shown when no amount is known.
const ZeroAmount = "0.00"

// PaymentEvent is the normalized result of one gateway capture. Amount is a
// display string passed through from the gateway.
type PaymentEvent struct {
	TransactionID string    `json:"transactionId"`
	OrderID       string    `json:"orderId"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Method        Method    `json:"paymentMethod"`
	CapturedAt    time.Time `json:"capturedAt"`
}

// RawPayment is the paymentData object posted by the browser or a webhook.
type RawPayment map[string]any

// Normalize folds the field spellings used by both gateways into a
// PaymentEvent. now stands in for a missing capture timestamp.
func Normalize(method Method, raw RawPayment, now time.Time) PaymentEvent {
	ev := PaymentEvent{
		Method:     method,
		Amount:     amountOf(raw, "amount", "paymentAmount"),
		Currency:   strings.ToUpper(raw.first("currency", "paymentCurrency")),
		Status:     raw.first("status"),
		CapturedAt: now,
	}
	switch method {
	case MethodRazorpay:
		ev.TransactionID = raw.first("paymentId", "razorpay_payment_id", "transactionId")
		ev.OrderID = raw.first("paymentOrderId", "razorpay_order_id", "orderId")
	default:
		ev.TransactionID = raw.first("paypalTransactionId", "transactionId")
		ev.OrderID = raw.first("paypalOrderId", "orderId")
	}
	if ev.Currency == "" {
		ev.Currency = method.DefaultCurrency()
	}
	if ev.Status == "" {
		ev.Status = "completed"
	}
	if ts := raw.first("capturedAt", "paymentCapturedAt"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			ev.CapturedAt = t
		}
	}
	return ev
}

// Stored is the payment data persisted on a registration, used to rebuild a
// PaymentEvent for a manual retry.
type Stored struct {
	Method              string
	PayPalTransactionID string
	PaymentID           string
	TransactionID       string
	PayPalOrderID       string
	PaymentOrderID      string
	RazorpayOrderID     string
	PaymentAmount       string
	TotalPrice          string
	PaymentCurrency     string
	PricingCurrency     string
	PaymentDate         string
	PaymentCapturedAt   string
}

// FromStored rebuilds the PaymentEvent recorded on a registration. The
// method defaults to PayPal when the registration has none.
func FromStored(s Stored, now time.Time) PaymentEvent {
	method, err := ParseMethod(s.Method)
	if err != nil {
		method = MethodPayPal
	}
	raw := RawPayment{
		"transactionId": firstNonEmpty(s.PayPalTransactionID, s.PaymentID, s.TransactionID),
		"orderId":       firstNonEmpty(s.PayPalOrderID, s.PaymentOrderID, s.RazorpayOrderID),
		"amount":        firstNonEmpty(s.PaymentAmount, s.TotalPrice),
		"currency":      firstNonEmpty(s.PaymentCurrency, s.PricingCurrency),
		"capturedAt":    firstNonEmpty(s.PaymentDate, s.PaymentCapturedAt),
	}
	return Normalize(method, raw, now)
}

func (r RawPayment) first(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(stringify(v)); s != "" {
			return s
		}
	}
	return ""
}

// amountOf keeps gateway strings verbatim and renders JSON numbers with two
// decimals.
func amountOf(r RawPayment, keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case string:
			if s := strings.TrimSpace(n); s != "" {
				return s
			}
		case float64:
			return decimal.NewFromFloat(n).StringFixed(2)
		case int:
			return decimal.NewFromInt(int64(n)).StringFixed(2)
		case int64:
			return decimal.NewFromInt(n).StringFixed(2)
		case json.Number:
			if d, err := decimal.NewFromString(n.String()); err == nil {
				return d.StringFixed(2)
			}
		}
	}
	return ZeroAmount
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
