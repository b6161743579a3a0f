package email

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/pdf"
	"confreg/internal/receipt/settings"
	registration "confreg/internal/registration/models"
	addrname "confreg/pkg/email"
)

const defaultSubject = "Payment Confirmation"

type templateData struct {
	ParticipantName string
	ConferenceTitle string
	CompanyName     string
	HeaderColor     string
	TransactionID   string
	RegistrationID  string
	Amount          string
	Method          string
	ContactEmail    string
	ContactPhone    string
	Website         string
	Attached        bool
	Year            int
}

var htmlTmpl = htmltemplate.Must(htmltemplate.New("receipt.html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: {{.HeaderColor}}; color: #fff; padding: 20px; text-align: center;">
    <h1 style="margin: 0;">Payment Confirmation</h1>
    <p style="margin: 4px 0 0;">{{.ConferenceTitle}}</p>
  </div>
  <div style="padding: 20px; background: #f9f9f9;">
    <p>Dear {{.ParticipantName}},</p>
    <p>Thank you for your payment! Your registration for {{.ConferenceTitle}} has been confirmed.</p>
    <div style="background: #e3f2fd; padding: 15px; border-left: 4px solid #2196f3;">
      <h3 style="margin-top: 0;">Payment Details</h3>
      <p><strong>Transaction ID:</strong> {{.TransactionID}}</p>
      <p><strong>Amount:</strong> {{.Amount}}</p>
      <p><strong>Payment Method:</strong> {{.Method}}</p>
      <p><strong>Registration ID:</strong> {{.RegistrationID}}</p>
      <p><strong>Status:</strong> COMPLETED</p>
    </div>
    {{if .Attached}}<p>Please find your payment receipt attached to this email. Keep this receipt for your records.</p>
    {{else}}<p>Your PDF receipt could not be attached to this email. Reply to this message or contact us and we will send it to you.</p>
    {{end}}<p>We look forward to seeing you at the conference!</p>
    <p>Best regards,<br>{{.CompanyName}}</p>
  </div>
  <div style="padding: 20px; text-align: center; color: #666; font-size: 12px;">
    <p>&copy; {{.Year}} {{.CompanyName}}</p>
    {{if .ContactEmail}}<p>For questions, contact: {{.ContactEmail}}{{if .ContactPhone}} | {{.ContactPhone}}{{end}}</p>{{end}}
    {{if .Website}}<p>{{.Website}}</p>{{end}}
  </div>
</div>
</body>
</html>
`))

var textTmpl = texttemplate.Must(texttemplate.New("receipt.txt").Parse(`Payment Confirmation - {{.ConferenceTitle}}

Dear {{.ParticipantName}},

Thank you for your payment! Your registration for {{.ConferenceTitle}} has been confirmed.

Payment Details
  Transaction ID:  {{.TransactionID}}
  Amount:          {{.Amount}}
  Payment Method:  {{.Method}}
  Registration ID: {{.RegistrationID}}
  Status:          COMPLETED

{{if .Attached}}Your payment receipt is attached to this email. Keep it for your records.
{{else}}Your PDF receipt could not be attached. Contact us and we will send it to you.
{{end}}
Best regards,
{{.CompanyName}}
{{if .ContactEmail}}
For questions, contact: {{.ContactEmail}}{{if .ContactPhone}} | {{.ContactPhone}}{{end}}
{{end}}`))

// Composer renders receipt emails from templates.
type Composer struct{}

func NewComposer() *Composer { return &Composer{} }

// Subject is "<subject line> - Registration <id>".
func Subject(s settings.Settings, registrationID string) string {
	prefix := strings.TrimSpace(s.SubjectLine)
	if prefix == "" {
		prefix = defaultSubject
	}
	return prefix + " - Registration " + registrationID
}

// Compose builds the receipt email for to. When receipt is empty or the
// tenant disabled attachments, the no-attachment wording is used.
func (c *Composer) Compose(to string, ev payment.PaymentEvent, reg *registration.Registration, s settings.Settings, receipt []byte, sentAt time.Time) (Message, error) {
	if reg == nil {
		reg = &registration.Registration{}
	}
	attach := len(receipt) > 0 && s.AttachPDF
	name := firstNonEmpty(reg.PersonalDetails.Name(), addrname.GreetingName(to), "Participant")
	currency := ev.Currency
	if currency == "" {
		currency = reg.Pricing.Currency
	}
	data := templateData{
		ParticipantName: name,
		ConferenceTitle: s.ConferenceTitle,
		CompanyName:     s.CompanyName,
		HeaderColor:     s.HeaderColor,
		TransactionID:   ev.TransactionID,
		RegistrationID:  reg.RegistrationID,
		Amount:          pdf.FormatAmount(currency, ev.Amount),
		Method:          strings.ToUpper(ev.Method.String()),
		ContactEmail:    s.ContactEmail,
		ContactPhone:    s.ContactPhone,
		Website:         s.Website,
		Attached:        attach,
		Year:            sentAt.Year(),
	}
	if data.HeaderColor == "" {
		data.HeaderColor = settings.DefaultHeaderColor
	}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, err
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, err
	}

	msg := Message{
		To:       strings.TrimSpace(to),
		FromName: s.SenderName,
		Subject:  Subject(s, reg.RegistrationID),
		HTML:     html.String(),
		Text:     text.String(),
	}
	if attach {
		msg.Attachments = []Attachment{{
			Filename:    pdf.AttachmentName(ev.TransactionID),
			ContentType: "application/pdf",
			Data:        receipt,
		}}
	}
	return msg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
