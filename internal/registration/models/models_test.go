package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payment "confreg/internal/payment/models"
)

func TestRegistrationDecodesCMSDocument(t *testing.T) {
	doc := `{
		"_id": "doc-1",
		"registrationId": "REG-1",
		"personalDetails": {"title": "Dr", "firstName": "Ada", "lastName": "Lovelace", "email": "a@b.com"},
		"selectedRegistrationName": "Speaker",
		"accommodationNights": 3,
		"pricing": {"registrationFee": 299, "totalPrice": 399.5, "currency": "USD"},
		"paymentAmount": "399.50",
		"paymentStatus": "completed",
		"receiptEmailSent": true,
		"pdfReceiptGenerated": false,
		"pdfReceipt": {"_type": "file", "asset": {"_type": "reference", "_ref": "file-abc-pdf"}}
	}`

	var reg Registration
	require.NoError(t, json.Unmarshal([]byte(doc), &reg))

	assert.Equal(t, "doc-1", reg.DocumentID)
	assert.Equal(t, "Dr Ada Lovelace", reg.PersonalDetails.Name())
	assert.Equal(t, "3", reg.AccommodationNights.String())
	assert.Equal(t, "399.5", reg.Pricing.TotalPrice.String())
	assert.Equal(t, "399.50", reg.PaymentAmount.String())
	assert.Equal(t, PaymentCompleted, reg.PaymentStatus)
	assert.True(t, reg.ReceiptEmailSent)
	assert.False(t, reg.ReceiptComplete())
	assert.Equal(t, "file-abc-pdf", reg.PDFReceipt.AssetID())
	assert.Equal(t, "Speaker", reg.RegistrationLabel())
}

func TestFlexStringNull(t *testing.T) {
	var f FlexString
	require.NoError(t, json.Unmarshal([]byte("null"), &f))
	assert.Equal(t, "", f.String())
}

func TestMergeIsMonotonic(t *testing.T) {
	sentAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	current := ProcessingStatus{
		PaymentStatus:       PaymentCompleted,
		ReceiptEmailSent:    true,
		ReceiptEmailSentAt:  &sentAt,
		PDFReceiptGenerated: true,
		WebhookProcessed:    true,
	}

	merged := current.Merge(ProcessingStatus{PaymentStatus: PaymentFailed}, false)
	assert.Equal(t, PaymentCompleted, merged.PaymentStatus)
	assert.True(t, merged.ReceiptEmailSent)
	assert.Equal(t, &sentAt, merged.ReceiptEmailSentAt)
	assert.True(t, merged.PDFReceiptGenerated)
	assert.True(t, merged.WebhookProcessed)

	forced := current.Merge(ProcessingStatus{PaymentStatus: PaymentCompleted}, true)
	assert.False(t, forced.ReceiptEmailSent)
	assert.False(t, forced.PDFReceiptGenerated)
}

func TestMergeKeepsPendingUntilSet(t *testing.T) {
	current := ProcessingStatus{PaymentStatus: PaymentPending}
	merged := current.Merge(ProcessingStatus{ReceiptEmailSent: true}, false)
	assert.Equal(t, PaymentPending, merged.PaymentStatus)
	assert.True(t, merged.ReceiptEmailSent)
}

func TestStoredPaymentRebuildsEvent(t *testing.T) {
	reg := Registration{
		PaymentMethod:       "paypal",
		PayPalTransactionID: "T1",
		PayPalOrderID:       "O1",
		Pricing:             Pricing{TotalPrice: "100.00", Currency: "USD"},
	}
	ev := payment.FromStored(reg.StoredPayment(), time.Now())
	assert.Equal(t, "T1", ev.TransactionID)
	assert.Equal(t, "O1", ev.OrderID)
	assert.Equal(t, "100.00", ev.Amount)
	assert.Equal(t, "USD", ev.Currency)
}

func TestStatusPatchFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status := ProcessingStatus{
		PaymentStatus:         PaymentCompleted,
		ReceiptEmailSent:      true,
		ReceiptEmailSentAt:    &now,
		ReceiptEmailRecipient: "a@b.com",
		PDFReceiptGenerated:   true,
		WebhookProcessed:      true,
		LastUpdated:           &now,
	}
	ev := payment.PaymentEvent{TransactionID: "pay_1", OrderID: "order_1", Amount: "2500.00", Currency: "INR", Method: payment.MethodRazorpay, CapturedAt: now}

	p := StatusPatch(status, ev)
	assert.Equal(t, "completed", p.Set["paymentStatus"])
	assert.Equal(t, true, p.Set["receiptEmailSent"])
	assert.Equal(t, "2026-03-01T12:00:00Z", p.Set["receiptEmailSentAt"])
	assert.Equal(t, "a@b.com", p.Set["receiptEmailRecipient"])
	assert.Equal(t, "pay_1", p.Set["razorpayPaymentId"])
	assert.Equal(t, "order_1", p.Set["paymentOrderId"])
	assert.Equal(t, "2500.00", p.Set["paymentAmount"])
	assert.Equal(t, json.Number("2500.00"), p.Set["pricing.totalPrice"])
	assert.NotContains(t, p.Set, "paypalTransactionId")
}

func TestStatusPatchSkipsNonNumericTotal(t *testing.T) {
	p := StatusPatch(ProcessingStatus{}, payment.PaymentEvent{TransactionID: "T1", Amount: "1,000.00", Method: payment.MethodPayPal})
	assert.NotContains(t, p.Set, "pricing.totalPrice")
	assert.Equal(t, "1,000.00", p.Set["paymentAmount"])
}

func TestReceiptAssetPatch(t *testing.T) {
	p := ReceiptAssetPatch("file-xyz-pdf", time.Unix(0, 0))
	ref, ok := p.Set["pdfReceipt"].(*AssetRef)
	require.True(t, ok)
	assert.Equal(t, "file", ref.Type)
	assert.Equal(t, "reference", ref.Asset.Type)
	assert.Equal(t, "file-xyz-pdf", ref.AssetID())
}

func TestFailedPaymentPatch(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	p := FailedPaymentPatch(payment.MethodRazorpay, "pay_1", "BAD_REQUEST_ERROR", at)
	assert.Equal(t, "failed", p.Set["paymentStatus"])
	assert.Equal(t, "failed", p.Set["status"])
	assert.Equal(t, "BAD_REQUEST_ERROR", p.Set["paymentFailureReason"])
	assert.Equal(t, "pay_1", p.Set["razorpayPaymentId"])
	assert.Equal(t, "pay_1", p.Set["paymentId"])
	assert.Equal(t, true, p.Set["webhookProcessed"])
	assert.Equal(t, "2025-03-14T09:30:00Z", p.Set["lastUpdated"])

	denied := FailedPaymentPatch(payment.MethodPayPal, "", " ", at)
	assert.Equal(t, "Payment failed", denied.Set["paymentFailureReason"])
	assert.NotContains(t, denied.Set, "paypalTransactionId")
}
