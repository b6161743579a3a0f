// Package email composes and delivers receipt emails over SMTP.
package email

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrDelivery wraps every failure to hand a message to the mail server.
var ErrDelivery = errors.New("email delivery failed")

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one email to exactly one recipient.
type Message struct {
	To          string
	FromName    string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// HasAttachment reports whether the message carries any non-empty file.
func (m Message) HasAttachment() bool {
	for _, a := range m.Attachments {
		if len(a.Data) > 0 {
			return true
		}
	}
	return false
}

// Validate enforces a single parseable recipient and a subject.
func (m Message) Validate() error {
	to := strings.TrimSpace(m.To)
	if to == "" {
		return errors.New("recipient is required")
	}
	addrs, err := mail.ParseAddressList(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if len(addrs) != 1 {
		return fmt.Errorf("exactly one recipient is allowed, got %d", len(addrs))
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}
