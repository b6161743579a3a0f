package pdf

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/settings"
	registration "confreg/internal/registration/models"
)

var generatedAt = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleRegistration() *registration.Registration {
	return &registration.Registration{
		RegistrationID:           "REG-1001",
		SelectedRegistrationName: "Speaker (In-Person)",
		AccommodationType:        "Hotel Twin",
		AccommodationNights:      "2",
		NumberOfParticipants:     1,
		PersonalDetails: registration.PersonalDetails{
			Title:     "Dr.",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Country:   "United Kingdom",
		},
		Pricing: registration.Pricing{RegistrationFee: "250", AccommodationFee: "49.5", Currency: "EUR"},
	}
}

func findRow(t *testing.T, doc Document, label string) string {
	t.Helper()
	for _, s := range doc.Sections {
		for _, r := range s.Rows {
			if r.Label == label {
				return r.Value
			}
		}
	}
	t.Fatalf("row %q not found", label)
	return ""
}

func TestLayout(t *testing.T) {
	ev := payment.PaymentEvent{
		TransactionID: "TXN-9",
		OrderID:       "ORD-9",
		Amount:        "299.50",
		Currency:      "EUR",
		Status:        "completed",
		Method:        payment.MethodPayPal,
		CapturedAt:    generatedAt,
	}

	doc := Layout(ev, sampleRegistration(), settings.Defaults(), generatedAt)

	assert.Equal(t, "PAYMENT RECEIPT", doc.Title)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "Payment Information", doc.Sections[0].Title)
	assert.Equal(t, "Registration Details", doc.Sections[1].Title)
	assert.Equal(t, "Payment Summary", doc.Sections[2].Title)

	assert.Equal(t, "TXN-9", findRow(t, doc, "Transaction ID"))
	assert.Equal(t, "PAYPAL", findRow(t, doc, "Payment Method"))
	assert.Equal(t, "EUR 299.50", findRow(t, doc, "Amount Paid"))
	assert.Equal(t, "EUR 299.50", findRow(t, doc, "Total Paid"))
	assert.Equal(t, "EUR 250", findRow(t, doc, "Registration Fee"))
	assert.Equal(t, "Dr. Ada Lovelace", findRow(t, doc, "Name"))
	assert.Equal(t, "Speaker (In-Person)", findRow(t, doc, "Registration Type"))
	assert.Equal(t, "Hotel Twin (2 nights)", findRow(t, doc, "Accommodation"))
	assert.Equal(t, "N/A", findRow(t, doc, "Phone"))
	assert.Equal(t, "REG-1001", doc.QRPayload)
	assert.Equal(t, "Generated on: 2025-03-14 09:30:00 UTC", doc.Footer)
}

func TestLayoutDefaultsForMissingValues(t *testing.T) {
	ev := payment.PaymentEvent{TransactionID: "TXN-1", Method: payment.MethodRazorpay}
	reg := &registration.Registration{RegistrationID: "REG-2"}

	doc := Layout(ev, reg, settings.Defaults(), generatedAt)

	assert.Equal(t, "USD 0.00", findRow(t, doc, "Amount Paid"))
	assert.Equal(t, "None", findRow(t, doc, "Accommodation"))
	assert.Equal(t, "N/A", findRow(t, doc, "Payment Date"))
	assert.Equal(t, "N/A", findRow(t, doc, "Order ID"))
	assert.Equal(t, "COMPLETED", findRow(t, doc, "Status"))
	for _, line := range doc.Lines() {
		assert.NotContains(t, line, "undefined")
		assert.NotContains(t, line, "<nil>")
	}
}

func TestLayoutNilRegistration(t *testing.T) {
	doc := Layout(payment.PaymentEvent{}, nil, settings.Settings{}, generatedAt)
	assert.Equal(t, "N/A", doc.CompanyName)
	assert.Equal(t, "N/A", findRow(t, doc, "Registration ID"))
	assert.Empty(t, doc.QRPayload)
}

func TestLayoutContactLine(t *testing.T) {
	s := settings.Defaults()
	s.ContactEmail = "help@conf.example"
	s.ContactPhone = "+44 20 1234"
	s.Website = "conf.example"

	doc := Layout(payment.PaymentEvent{}, sampleRegistration(), s, generatedAt)
	assert.Equal(t, "For questions, contact: help@conf.example | +44 20 1234 | conf.example", doc.Contact)
	assert.True(t, strings.HasPrefix(doc.ThankYou, "Thank you for registering for "+s.ConferenceTitle))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "USD 0.00", FormatAmount("", ""))
	assert.Equal(t, "INR 1500.00", FormatAmount("inr", "1500.00"))
	assert.Equal(t, "USD 12.5", FormatAmount(" ", "12.5"))
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, RGB{255, 0, 16}, ParseHexColor("#ff0010", Navy))
	assert.Equal(t, RGB{170, 187, 204}, ParseHexColor("abc", Navy))
	assert.Equal(t, Navy, ParseHexColor("not-a-color", Navy))
	assert.Equal(t, Navy, ParseHexColor("", Navy))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "Payment_Receipt_TXN-9.pdf", AttachmentName("TXN-9"))
	assert.Equal(t, "Payment_Receipt_a_b.pdf", AttachmentName("a/b"))
	assert.Equal(t, "Payment_Receipt_unknown.pdf", AttachmentName(""))
	assert.Equal(t,
		"receipt_REG-1_razorpay_pay_1_1741944600000.pdf",
		AssetName("REG-1", payment.MethodRazorpay, "pay_1", generatedAt))
}
