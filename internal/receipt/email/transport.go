package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mail "github.com/wneessen/go-mail"

	"confreg/internal/platform/config"
)

const (
	portImplicitTLS = 465
	portSTARTTLS    = 587
)

// TransportConfig selects one way of reaching the mail server.
type TransportConfig struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
	Timeout  time.Duration
}

// TransportConfigFromSMTP maps the process SMTP settings.
func TransportConfigFromSMTP(c config.SMTP) TransportConfig {
	return TransportConfig{
		Host:     c.Host,
		Port:     c.Port,
		Secure:   c.Secure,
		Username: c.User,
		Password: c.Password,
		Timeout:  c.Timeout,
	}
}

// Name identifies the configuration in logs and results.
func (c TransportConfig) Name() string {
	mode := "starttls"
	if c.Secure {
		mode = "tls"
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, mode)
}

// Alternate swaps implicit TLS on 465 for STARTTLS on 587 and back. Other
// ports have no alternate.
func (c TransportConfig) Alternate() (TransportConfig, bool) {
	alt := c
	switch {
	case c.Secure || c.Port == portImplicitTLS:
		alt.Port, alt.Secure = portSTARTTLS, false
	case c.Port == portSTARTTLS:
		alt.Port, alt.Secure = portImplicitTLS, true
	default:
		return TransportConfig{}, false
	}
	return alt, true
}

// Sender is the envelope identity.
type Sender struct {
	Name    string
	Address string
}

// Transport is one SMTP connection. Verify dials and authenticates; Send
// delivers on the verified connection.
type Transport interface {
	Verify(ctx context.Context) error
	Send(ctx context.Context, from Sender, msg Message) (messageID string, err error)
	Close() error
}

// TransportFactory builds a Transport for a configuration.
type TransportFactory func(TransportConfig) (Transport, error)

// GoMailTransport delivers through github.com/wneessen/go-mail.
type GoMailTransport struct {
	client *mail.Client

	mu     sync.Mutex
	dialed bool
}

// NewGoMailTransport is the default TransportFactory.
func NewGoMailTransport(cfg TransportConfig) (Transport, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client %s: %w", cfg.Name(), err)
	}
	return &GoMailTransport{client: client}, nil
}

func (t *GoMailTransport) Verify(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialed {
		return nil
	}
	if err := t.client.DialWithContext(ctx); err != nil {
		return err
	}
	t.dialed = true
	return nil
}

func (t *GoMailTransport) Send(ctx context.Context, from Sender, msg Message) (string, error) {
	m, err := buildMsg(from, msg)
	if err != nil {
		return "", err
	}
	if err := t.Verify(ctx); err != nil {
		return "", err
	}
	if err := t.client.Send(m); err != nil {
		return "", err
	}
	return m.GetMessageID(), nil
}

func (t *GoMailTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dialed {
		return nil
	}
	t.dialed = false
	return t.client.Close()
}

func buildMsg(from Sender, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	var err error
	if from.Name != "" {
		err = m.FromFormat(from.Name, from.Address)
	} else {
		err = m.From(from.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	case msg.Text != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	default:
		return nil, errors.New("message has no body")
	}

	for _, a := range msg.Attachments {
		if len(a.Data) == 0 {
			continue
		}
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Data), mail.WithFileContentType(mail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}
	return m, nil
}
