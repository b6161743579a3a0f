package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	payment "confreg/internal/payment/models"
)

// DocumentType is the CMS document type for registrations.
const DocumentType = "conferenceRegistration"

// PaymentStatus of a registration.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// ProcessingResult of the last automatic receipt run.
type ProcessingResult string

const (
	ResultSucceeded ProcessingResult = "succeeded"
	ResultFailed    ProcessingResult = "failed"
)

// FlexString decodes a JSON string or number into its textual form. The
// CMS holds some amounts as numbers and others as strings.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

type PersonalDetails struct {
	Title             string `json:"title,omitempty"`
	FirstName         string `json:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty"`
	FullName          string `json:"fullName,omitempty"`
	Email             string `json:"email,omitempty"`
	PhoneNumber       string `json:"phoneNumber,omitempty"`
	Country           string `json:"country,omitempty"`
	FullPostalAddress string `json:"fullPostalAddress,omitempty"`
}

// Name is the display name, preferring the explicit full name.
func (p PersonalDetails) Name() string {
	if n := strings.TrimSpace(p.FullName); n != "" {
		return n
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Title, p.FirstName, p.LastName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

type Pricing struct {
	RegistrationFee     FlexString `json:"registrationFee,omitempty"`
	AccommodationFee    FlexString `json:"accommodationFee,omitempty"`
	TotalPrice          FlexString `json:"totalPrice,omitempty"`
	Currency            string     `json:"currency,omitempty"`
	PricingPeriod       string     `json:"pricingPeriod,omitempty"`
	FormattedTotalPrice string     `json:"formattedTotalPrice,omitempty"`
}

// AssetRef points a registration at an uploaded file asset.
type AssetRef struct {
	Type  string `json:"_type"`
	Asset struct {
		Type string `json:"_type"`
		Ref  string `json:"_ref"`
	} `json:"asset"`
}

// NewFileRef builds a file reference to assetID.
func NewFileRef(assetID string) *AssetRef {
	ref := &AssetRef{Type: "file"}
	ref.Asset.Type = "reference"
	ref.Asset.Ref = assetID
	return ref
}

// AssetID returns the referenced asset id or "".
func (a *AssetRef) AssetID() string {
	if a == nil {
		return ""
	}
	return a.Asset.Ref
}

// ProcessingStatus is the mutable receipt pipeline state stored on the
// registration document.
type ProcessingStatus struct {
	PaymentStatus                 PaymentStatus    `json:"paymentStatus,omitempty"`
	ReceiptEmailSent              bool             `json:"receiptEmailSent"`
	ReceiptEmailSentAt            *time.Time       `json:"receiptEmailSentAt,omitempty"`
	ReceiptEmailRecipient         string           `json:"receiptEmailRecipient,omitempty"`
	PDFReceiptGenerated           bool             `json:"pdfReceiptGenerated"`
	PDFReceiptStoredInSanity      bool             `json:"pdfReceiptStoredInSanity"`
	WebhookProcessed              bool             `json:"webhookProcessed"`
	LastAutomaticProcessingResult ProcessingResult `json:"lastAutomaticProcessingResult,omitempty"`
	LastUpdated                   *time.Time       `json:"lastUpdated,omitempty"`
}

// ReceiptComplete reports whether a receipt was both generated and emailed.
func (s ProcessingStatus) ReceiptComplete() bool {
	return s.ReceiptEmailSent && s.PDFReceiptGenerated
}

// Merge applies next on top of s. Without force, flags that are already
// true stay true and a completed payment stays completed.
func (s ProcessingStatus) Merge(next ProcessingStatus, force bool) ProcessingStatus {
	out := next
	if force {
		return out
	}
	if s.PaymentStatus == PaymentCompleted {
		out.PaymentStatus = PaymentCompleted
	}
	if out.PaymentStatus == "" {
		out.PaymentStatus = s.PaymentStatus
	}
	if s.ReceiptEmailSent {
		out.ReceiptEmailSent = true
		if out.ReceiptEmailSentAt == nil {
			out.ReceiptEmailSentAt = s.ReceiptEmailSentAt
		}
		if out.ReceiptEmailRecipient == "" {
			out.ReceiptEmailRecipient = s.ReceiptEmailRecipient
		}
	}
	out.PDFReceiptGenerated = out.PDFReceiptGenerated || s.PDFReceiptGenerated
	out.PDFReceiptStoredInSanity = out.PDFReceiptStoredInSanity || s.PDFReceiptStoredInSanity
	out.WebhookProcessed = out.WebhookProcessed || s.WebhookProcessed
	if out.LastAutomaticProcessingResult == "" {
		out.LastAutomaticProcessingResult = s.LastAutomaticProcessingResult
	}
	if out.LastUpdated == nil {
		out.LastUpdated = s.LastUpdated
	}
	return out
}

// Registration is one conference registration document.
type Registration struct {
	DocumentID               string          `json:"_id,omitempty"`
	RegistrationID           string          `json:"registrationId"`
	RegistrationType         string          `json:"registrationType,omitempty"`
	PersonalDetails          PersonalDetails `json:"personalDetails"`
	SelectedRegistration     string          `json:"selectedRegistration,omitempty"`
	SelectedRegistrationName string          `json:"selectedRegistrationName,omitempty"`
	ParticipantCategory      string          `json:"participantCategory,omitempty"`
	SponsorType              string          `json:"sponsorType,omitempty"`
	AccommodationType        string          `json:"accommodationType,omitempty"`
	AccommodationNights      FlexString      `json:"accommodationNights,omitempty"`
	NumberOfParticipants     int             `json:"numberOfParticipants,omitempty"`
	Pricing                  Pricing         `json:"pricing"`

	PaymentMethod       string     `json:"paymentMethod,omitempty"`
	PayPalTransactionID string     `json:"paypalTransactionId,omitempty"`
	PayPalOrderID       string     `json:"paypalOrderId,omitempty"`
	RazorpayPaymentID   string     `json:"razorpayPaymentId,omitempty"`
	RazorpayOrderID     string     `json:"razorpayOrderId,omitempty"`
	PaymentID           string     `json:"paymentId,omitempty"`
	PaymentOrderID      string     `json:"paymentOrderId,omitempty"`
	TransactionID       string     `json:"transactionId,omitempty"`
	PaymentAmount       FlexString `json:"paymentAmount,omitempty"`
	PaymentCurrency     string     `json:"paymentCurrency,omitempty"`
	PaymentDate         string     `json:"paymentDate,omitempty"`
	PaymentCapturedAt   string     `json:"paymentCapturedAt,omitempty"`
	RegistrationDate    string     `json:"registrationDate,omitempty"`

	PaymentFailureReason string `json:"paymentFailureReason,omitempty"`

	ProcessingStatus
	PDFReceipt *AssetRef `json:"pdfReceipt,omitempty"`
}

// StoredPayment exposes the payment fields recorded on the registration.
func (r *Registration) StoredPayment() payment.Stored {
	return payment.Stored{
		Method:              r.PaymentMethod,
		PayPalTransactionID: r.PayPalTransactionID,
		PaymentID:           firstNonEmpty(r.PaymentID, r.RazorpayPaymentID),
		TransactionID:       r.TransactionID,
		PayPalOrderID:       r.PayPalOrderID,
		PaymentOrderID:      r.PaymentOrderID,
		RazorpayOrderID:     r.RazorpayOrderID,
		PaymentAmount:       r.PaymentAmount.String(),
		TotalPrice:          r.Pricing.TotalPrice.String(),
		PaymentCurrency:     r.PaymentCurrency,
		PricingCurrency:     r.Pricing.Currency,
		PaymentDate:         r.PaymentDate,
		PaymentCapturedAt:   r.PaymentCapturedAt,
	}
}

// RegistrationLabel names what was registered for: the selected
// registration, else the sponsorship, else the raw type.
func (r *Registration) RegistrationLabel() string {
	return firstNonEmpty(r.SelectedRegistrationName, r.SelectedRegistration, sponsorLabel(r.SponsorType), r.RegistrationType)
}

// Participants returns at least one.
func (r *Registration) Participants() int {
	if r.NumberOfParticipants < 1 {
		return 1
	}
	return r.NumberOfParticipants
}

// Patch is a partial update of a registration. Set keys are CMS field paths.
type Patch struct {
	Set   map[string]any
	Unset []string
}

// StatusPatch renders a status and payment event as CMS fields.
func StatusPatch(status ProcessingStatus, ev payment.PaymentEvent) Patch {
	set := map[string]any{
		"receiptEmailSent":         status.ReceiptEmailSent,
		"pdfReceiptGenerated":      status.PDFReceiptGenerated,
		"pdfReceiptStoredInSanity": status.PDFReceiptStoredInSanity,
		"webhookProcessed":         status.WebhookProcessed,
	}
	if status.PaymentStatus != "" {
		set["paymentStatus"] = string(status.PaymentStatus)
		set["status"] = string(status.PaymentStatus)
	}
	if status.ReceiptEmailSentAt != nil {
		set["receiptEmailSentAt"] = status.ReceiptEmailSentAt.UTC().Format(time.RFC3339)
	}
	if status.ReceiptEmailRecipient != "" {
		set["receiptEmailRecipient"] = status.ReceiptEmailRecipient
	}
	if status.LastAutomaticProcessingResult != "" {
		set["lastAutomaticProcessingResult"] = string(status.LastAutomaticProcessingResult)
	}
	if status.LastUpdated != nil {
		set["lastUpdated"] = status.LastUpdated.UTC().Format(time.RFC3339)
	}
	if ev.TransactionID != "" {
		set["transactionId"] = ev.TransactionID
		set["paymentMethod"] = ev.Method.String()
		set["paymentAmount"] = ev.Amount
		set["paymentCurrency"] = ev.Currency
		set["paymentCapturedAt"] = ev.CapturedAt.UTC().Format(time.RFC3339)
		set["pricing.currency"] = ev.Currency
		if _, err := strconv.ParseFloat(ev.Amount, 64); err == nil {
			set["pricing.totalPrice"] = json.Number(ev.Amount)
		}
		switch ev.Method {
		case payment.MethodPayPal:
			set["paypalTransactionId"] = ev.TransactionID
			if ev.OrderID != "" {
				set["paypalOrderId"] = ev.OrderID
			}
		case payment.MethodRazorpay:
			set["razorpayPaymentId"] = ev.TransactionID
			set["paymentId"] = ev.TransactionID
			if ev.OrderID != "" {
				set["razorpayOrderId"] = ev.OrderID
				set["paymentOrderId"] = ev.OrderID
			}
		}
	}
	return Patch{Set: set}
}

// FailedPaymentPatch marks a declined or failed gateway payment. The
// gateway's payment id is recorded when known.
func FailedPaymentPatch(method payment.Method, paymentID, reason string, at time.Time) Patch {
	if strings.TrimSpace(reason) == "" {
		reason = "Payment failed"
	}
	set := map[string]any{
		"paymentStatus":        string(PaymentFailed),
		"status":               string(PaymentFailed),
		"paymentFailureReason": reason,
		"webhookProcessed":     true,
		"lastUpdated":          at.UTC().Format(time.RFC3339),
	}
	if method != "" {
		set["paymentMethod"] = method.String()
	}
	if paymentID != "" {
		switch method {
		case payment.MethodPayPal:
			set["paypalTransactionId"] = paymentID
		case payment.MethodRazorpay:
			set["razorpayPaymentId"] = paymentID
			set["paymentId"] = paymentID
		}
	}
	return Patch{Set: set}
}

// ReceiptAssetPatch links an uploaded receipt to the registration.
func ReceiptAssetPatch(assetID string, at time.Time) Patch {
	return Patch{Set: map[string]any{
		"pdfReceipt":               NewFileRef(assetID),
		"pdfReceiptStoredInSanity": true,
		"lastUpdated":              at.UTC().Format(time.RFC3339),
	}}
}

func sponsorLabel(s string) string {
	if s == "" {
		return ""
	}
	return "Sponsorship: " + s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
