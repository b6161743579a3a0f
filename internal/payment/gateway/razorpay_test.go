package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confreg/internal/payment/models"
	"confreg/internal/platform/config"
)

type fakePayments struct {
	fetched    map[string]any
	fetchErr   error
	captured   map[string]any
	captureErr error

	captureCalls  int
	captureAmount int64
}

func (f *fakePayments) Fetch(string) (map[string]any, error) {
	return f.fetched, f.fetchErr
}

func (f *fakePayments) Capture(_ string, amount int64, _ string) (map[string]any, error) {
	f.captureCalls++
	f.captureAmount = amount
	return f.captured, f.captureErr
}

func sign(secret, payload string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(payload))
	return hex.EncodeToString(m.Sum(nil))
}

func newRazorpay(p RazorpayPayments) *Razorpay {
	return NewRazorpay(config.Razorpay{KeyID: "rzp_test", KeySecret: "key-secret", WebhookSecret: "hook-secret"},
		WithRazorpayPayments(p),
		WithRazorpayClock(func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }),
		WithRazorpayLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestRazorpayCaptureAuthorizedPayment(t *testing.T) {
	payments := &fakePayments{
		fetched: map[string]any{"id": "pay_1", "status": "authorized", "amount": float64(250000), "currency": "INR", "order_id": "order_1"},
		captured: map[string]any{
			"id": "pay_1", "status": "captured", "amount": float64(250000), "currency": "INR",
			"order_id": "order_1", "created_at": float64(1775116000),
		},
	}
	r := newRazorpay(payments)

	ev, err := r.Capture(context.Background(), CaptureRequest{
		Method:    models.MethodRazorpay,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: sign("key-secret", "order_1|pay_1"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, payments.captureCalls)
	assert.Equal(t, int64(250000), payments.captureAmount)
	assert.Equal(t, "pay_1", ev.TransactionID)
	assert.Equal(t, "order_1", ev.OrderID)
	assert.Equal(t, "2500.00", ev.Amount)
	assert.Equal(t, "INR", ev.Currency)
	assert.Equal(t, "captured", ev.Status)
	assert.Equal(t, time.Unix(1775116000, 0).UTC(), ev.CapturedAt)
}

func TestRazorpayAlreadyCapturedSkipsCapture(t *testing.T) {
	payments := &fakePayments{
		fetched: map[string]any{"id": "pay_1", "status": "captured", "amount": float64(99), "currency": "INR"},
	}
	r := newRazorpay(payments)

	ev, err := r.Capture(context.Background(), CaptureRequest{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("key-secret", "order_1|pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, payments.captureCalls)
	assert.Equal(t, "0.99", ev.Amount)
	assert.Equal(t, "order_1", ev.OrderID)
}

func TestRazorpayRejectsBadSignature(t *testing.T) {
	payments := &fakePayments{}
	r := newRazorpay(payments)

	_, err := r.Capture(context.Background(), CaptureRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: "deadbeef"})
	assert.True(t, IsVerificationError(err))
	assert.Equal(t, 0, payments.captureCalls)
}

func TestRazorpayFailedPaymentIsCaptureError(t *testing.T) {
	payments := &fakePayments{fetched: map[string]any{"id": "pay_1", "status": "failed"}}
	r := newRazorpay(payments)

	_, err := r.Capture(context.Background(), CaptureRequest{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("key-secret", "order_1|pay_1"),
	})
	require.Error(t, err)
	assert.True(t, IsCaptureError(err))

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, ge.Raw, `"failed"`)
}

func TestRazorpayAuthenticationFailure(t *testing.T) {
	payments := &fakePayments{fetchErr: errors.New("Authentication failed")}
	r := newRazorpay(payments)

	_, err := r.Capture(context.Background(), CaptureRequest{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("key-secret", "order_1|pay_1"),
	})
	assert.True(t, IsAuthError(err))
}

func TestRazorpayVerifyWebhook(t *testing.T) {
	r := newRazorpay(&fakePayments{})
	body := []byte(`{"event":"payment.captured"}`)

	assert.NoError(t, r.VerifyWebhook(body, sign("hook-secret", string(body))))
	assert.True(t, IsVerificationError(r.VerifyWebhook(body, sign("other", string(body)))))

	unconfigured := NewRazorpay(config.Razorpay{KeySecret: "k"}, WithRazorpayPayments(&fakePayments{}))
	var ge *Error
	require.ErrorAs(t, unconfigured.VerifyWebhook(body, "x"), &ge)
	assert.Equal(t, KindConfiguration, ge.Kind)
}

func TestRazorpayVerifySignature(t *testing.T) {
	r := newRazorpay(&fakePayments{})

	assert.True(t, r.VerifySignature("order_1", "pay_1", sign("key-secret", "order_1|pay_1")))
	assert.False(t, r.VerifySignature("order_1", "pay_2", sign("key-secret", "order_1|pay_1")))
	assert.False(t, r.VerifySignature("order_1", "pay_1", sign("other-secret", "order_1|pay_1")))
	assert.False(t, r.VerifySignature("", "pay_1", "sig"))
}
