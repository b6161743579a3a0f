// Package pdf renders single-page payment receipts.
package pdf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/settings"
	registration "confreg/internal/registration/models"
)

const (
	notAvailable    = "N/A"
	defaultCurrency = "USD"
)

// RGB is an 8-bit color.
type RGB struct{ R, G, B int }

var (
	// Navy header band and blue accents.
	Navy      = RGB{15, 23, 42}
	Blue      = RGB{30, 58, 138}
	TextDark  = RGB{33, 37, 41}
	TextMuted = RGB{107, 114, 128}
	Success   = RGB{21, 128, 61}
)

// Row is one label/value line of a section.
type Row struct {
	Label string
	Value string
}

// Section is a titled table of rows.
type Section struct {
	Title string
	Rows  []Row
}

// Document is the fully resolved content of a receipt. It holds no I/O
// state so layout can be tested without rendering.
type Document struct {
	CompanyName     string
	ConferenceTitle string
	HeaderColor     RGB
	Title           string
	Sections        []Section
	Contact         string
	ThankYou        string
	Footer          string
	QRPayload       string
	LogoURL         string
	LogoWidth       float64
	LogoHeight      float64
	GeneratedAt     time.Time
}

// Lines flattens the document into the text it will show.
func (d Document) Lines() []string {
	out := []string{d.CompanyName, d.ConferenceTitle, d.Title}
	for _, s := range d.Sections {
		out = append(out, s.Title)
		for _, r := range s.Rows {
			out = append(out, r.Label+": "+r.Value)
		}
	}
	return append(out, d.Contact, d.ThankYou, d.Footer)
}

// FormatAmount renders "<CURRENCY> <amount>", substituting USD and 0.00 for
// blanks. The amount is otherwise shown exactly as the gateway sent it.
func FormatAmount(currency, amount string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		amount = payment.ZeroAmount
	}
	return currency + " " + amount
}

// Layout resolves the receipt content for one payment.
func Layout(ev payment.PaymentEvent, reg *registration.Registration, s settings.Settings, generatedAt time.Time) Document {
	if reg == nil {
		reg = &registration.Registration{}
	}
	pd := reg.PersonalDetails
	currency := firstNonBlank(ev.Currency, reg.Pricing.Currency)

	paid := FormatAmount(currency, ev.Amount)
	paymentRows := []Row{
		{"Transaction ID", orNA(ev.TransactionID)},
		{"Order ID", orNA(ev.OrderID)},
		{"Payment Method", orNA(strings.ToUpper(ev.Method.String()))},
		{"Payment Date", dateOrNA(ev.CapturedAt)},
		{"Amount Paid", paid},
		{"Status", strings.ToUpper(firstNonBlank(ev.Status, "completed"))},
	}

	regRows := []Row{
		{"Registration ID", orNA(reg.RegistrationID)},
		{"Name", orNA(pd.Name())},
		{"Email", orNA(pd.Email)},
		{"Phone", orNA(pd.PhoneNumber)},
		{"Country", orNA(pd.Country)},
		{"Address", orNA(pd.FullPostalAddress)},
		{"Registration Type", orNA(reg.RegistrationLabel())},
		{"Accommodation", accommodation(reg)},
		{"Participants", strconv.Itoa(reg.Participants())},
	}

	var summary []Row
	if fee := reg.Pricing.RegistrationFee.String(); strings.TrimSpace(fee) != "" {
		summary = append(summary, Row{"Registration Fee", FormatAmount(currency, fee)})
	}
	if fee := reg.Pricing.AccommodationFee.String(); strings.TrimSpace(fee) != "" && fee != "0" {
		summary = append(summary, Row{"Accommodation Fee", FormatAmount(currency, fee)})
	}
	summary = append(summary, Row{"Total Paid", paid})

	contact := "For questions, contact: " + orNA(s.ContactEmail)
	if s.ContactPhone != "" {
		contact += " | " + s.ContactPhone
	}
	if s.Website != "" {
		contact += " | " + s.Website
	}

	footer := s.FooterText
	if footer == "" {
		footer = s.CompanyName
	}

	return Document{
		CompanyName:     orNA(s.CompanyName),
		ConferenceTitle: orNA(s.ConferenceTitle),
		HeaderColor:     ParseHexColor(s.HeaderColor, Navy),
		Title:           "PAYMENT RECEIPT",
		Sections: []Section{
			{Title: "Payment Information", Rows: paymentRows},
			{Title: "Registration Details", Rows: regRows},
			{Title: "Payment Summary", Rows: summary},
		},
		Contact:     contact,
		ThankYou:    fmt.Sprintf("Thank you for registering for %s! %s", orNA(s.ConferenceTitle), footer),
		Footer:      "Generated on: " + generatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		QRPayload:   reg.RegistrationID,
		LogoURL:     s.LogoURL,
		LogoWidth:   s.LogoWidth,
		LogoHeight:  s.LogoHeight,
		GeneratedAt: generatedAt,
	}
}

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{6}|[0-9a-fA-F]{3})$`)

// ParseHexColor parses #RRGGBB or #RGB, returning fallback otherwise.
func ParseHexColor(s string, fallback RGB) RGB {
	m := hexColor.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return fallback
	}
	h := m[1]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return fallback
	}
	return RGB{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}

func accommodation(reg *registration.Registration) string {
	if reg.AccommodationType == "" {
		return "None"
	}
	if n := reg.AccommodationNights.String(); n != "" {
		return fmt.Sprintf("%s (%s nights)", reg.AccommodationType, n)
	}
	return reg.AccommodationType
}

func dateOrNA(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format("January 2, 2006")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" || s == "undefined" || s == "null" {
		return notAvailable
	}
	return s
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
