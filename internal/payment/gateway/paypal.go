package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"confreg/internal/payment/models"
	"confreg/internal/platform/config"
)

const (
	PayPalLiveURL    = "https://api-m.paypal.com"
	PayPalSandboxURL = "https://api-m.sandbox.paypal.com"

	maxRawBody = 64 << 10
)

// PayPal captures approved checkout orders.
type PayPal struct {
	http      *http.Client
	baseURL   string
	webhookID string
	tokens    oauth2.TokenSource
	now       func() time.Time
	logger    *slog.Logger
}

// PayPalOption configures the PayPal client.
type PayPalOption func(*payPalSettings)

type payPalSettings struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
	logger  *slog.Logger
}

// WithPayPalBaseURL overrides the API host, e.g. for an httptest server.
func WithPayPalBaseURL(u string) PayPalOption {
	return func(s *payPalSettings) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithPayPalHTTPClient replaces the HTTP client used for tokens and captures.
func WithPayPalHTTPClient(hc *http.Client) PayPalOption {
	return func(s *payPalSettings) { s.http = hc }
}

// WithPayPalClock sets the clock used for request ids and fallback timestamps.
func WithPayPalClock(now func() time.Time) PayPalOption {
	return func(s *payPalSettings) { s.now = now }
}

// WithPayPalLogger sets the logger.
func WithPayPalLogger(l *slog.Logger) PayPalOption {
	return func(s *payPalSettings) { s.logger = l }
}

// NewPayPal builds a client whose access token is fetched once and reused
// until it expires.
func NewPayPal(cfg config.PayPal, opts ...PayPalOption) *PayPal {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	s := payPalSettings{
		baseURL: PayPalSandboxURL,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
		logger:  slog.Default(),
	}
	if cfg.Production() {
		s.baseURL = PayPalLiveURL
	}
	for _, opt := range opts {
		opt(&s)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     s.baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, s.http)

	return &PayPal{
		http:      s.http,
		baseURL:   s.baseURL,
		webhookID: cfg.WebhookID,
		tokens:    cc.TokenSource(tokenCtx),
		now:       s.now,
		logger:    s.logger,
	}
}

type payPalCaptureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount struct {
					Value        string `json:"value"`
					CurrencyCode string `json:"currency_code"`
				} `json:"amount"`
				CreateTime string `json:"create_time"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type payPalErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (p *PayPal) Capture(ctx context.Context, req CaptureRequest) (models.PaymentEvent, error) {
	if req.OrderID == "" {
		return models.PaymentEvent{}, &Error{Kind: KindCapture, Gateway: models.MethodPayPal, Message: "order id is required"}
	}

	tok, err := p.tokens.Token()
	if err != nil {
		return models.PaymentEvent{}, p.authError(err)
	}

	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.baseURL, url.PathEscape(req.OrderID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return models.PaymentEvent{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Prefer", "return=representation")
	httpReq.Header.Set("PayPal-Request-Id", p.requestID(req.RegistrationID))
	tok.SetAuthHeader(httpReq)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return models.PaymentEvent{}, &Error{Kind: KindCapture, Gateway: models.MethodPayPal, Message: "capture request failed", Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxRawBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := &Error{Kind: KindCapture, Gateway: models.MethodPayPal, Status: resp.StatusCode, Raw: string(raw)}
		var body payPalErrorBody
		if json.Unmarshal(raw, &body) == nil {
			gerr.Message = body.Message
			if len(body.Details) > 0 && body.Details[0].Issue != "" {
				gerr.Message = body.Details[0].Issue + ": " + body.Details[0].Description
			}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			gerr.Kind = KindAuth
		}
		p.logger.WarnContext(ctx, "paypal capture rejected",
			"order_id", req.OrderID,
			"registration_id", req.RegistrationID,
			"status", resp.StatusCode,
		)
		return models.PaymentEvent{}, gerr
	}

	var body payPalCaptureResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return models.PaymentEvent{}, &Error{Kind: KindCapture, Gateway: models.MethodPayPal, Status: resp.StatusCode, Raw: string(raw), Message: "undecodable capture response", Err: err}
	}
	if len(body.PurchaseUnits) == 0 || len(body.PurchaseUnits[0].Payments.Captures) == 0 {
		return models.PaymentEvent{}, &Error{Kind: KindCapture, Gateway: models.MethodPayPal, Status: resp.StatusCode, Raw: string(raw), Message: "capture response has no captures"}
	}
	capture := body.PurchaseUnits[0].Payments.Captures[0]

	ev := models.Normalize(models.MethodPayPal, models.RawPayment{
		"transactionId": capture.ID,
		"orderId":       firstNonBlank(body.ID, req.OrderID),
		"amount":        capture.Amount.Value,
		"currency":      capture.Amount.CurrencyCode,
		"status":        firstNonBlank(capture.Status, body.Status),
		"capturedAt":    capture.CreateTime,
	}, p.now().UTC())
	return ev, nil
}

// Transmission headers PayPal signs webhook deliveries with.
const (
	PayPalTransmissionID   = "Paypal-Transmission-Id"
	PayPalTransmissionTime = "Paypal-Transmission-Time"
	PayPalTransmissionSig  = "Paypal-Transmission-Sig"
	PayPalCertURL          = "Paypal-Cert-Url"
	PayPalAuthAlgo         = "Paypal-Auth-Algo"
)

type payPalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

// VerifyWebhook asks PayPal whether a webhook delivery was signed for the
// configured webhook id.
func (p *PayPal) VerifyWebhook(ctx context.Context, header http.Header, body []byte) error {
	if p.webhookID == "" {
		return &Error{Kind: KindConfiguration, Gateway: models.MethodPayPal, Message: "webhook id not configured"}
	}
	vr := payPalVerifyRequest{
		AuthAlgo:         header.Get(PayPalAuthAlgo),
		CertURL:          header.Get(PayPalCertURL),
		TransmissionID:   header.Get(PayPalTransmissionID),
		TransmissionSig:  header.Get(PayPalTransmissionSig),
		TransmissionTime: header.Get(PayPalTransmissionTime),
		WebhookID:        p.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}
	if vr.TransmissionID == "" || vr.TransmissionSig == "" || vr.CertURL == "" {
		return &Error{Kind: KindVerification, Gateway: models.MethodPayPal, Message: "missing transmission headers"}
	}
	if !json.Valid(body) {
		return &Error{Kind: KindVerification, Gateway: models.MethodPayPal, Message: "webhook body is not JSON"}
	}
	payload, err := json.Marshal(vr)
	if err != nil {
		return err
	}

	tok, err := p.tokens.Token()
	if err != nil {
		return p.authError(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(httpReq)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return &Error{Kind: KindVerification, Gateway: models.MethodPayPal, Message: "verification request failed", Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxRawBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := KindVerification
		if resp.StatusCode == http.StatusUnauthorized {
			kind = KindAuth
		}
		return &Error{Kind: kind, Gateway: models.MethodPayPal, Status: resp.StatusCode, Raw: string(raw), Message: "verification rejected"}
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return &Error{Kind: KindVerification, Gateway: models.MethodPayPal, Status: resp.StatusCode, Raw: string(raw), Message: "undecodable verification response", Err: err}
	}
	if out.VerificationStatus != "SUCCESS" {
		p.logger.WarnContext(ctx, "paypal webhook signature did not verify",
			"transmission_id", vr.TransmissionID,
			"verification_status", out.VerificationStatus,
		)
		return &Error{Kind: KindVerification, Gateway: models.MethodPayPal, Status: resp.StatusCode, Raw: string(raw), Message: "webhook signature mismatch"}
	}
	return nil
}

func (p *PayPal) requestID(registrationID string) string {
	return fmt.Sprintf("%s-capture-%d", registrationID, p.now().UnixMilli())
}

func (p *PayPal) authError(err error) error {
	gerr := &Error{Kind: KindAuth, Gateway: models.MethodPayPal, Message: "access token request failed", Err: err}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		gerr.Raw = string(re.Body)
		if re.Response != nil {
			gerr.Status = re.Response.StatusCode
		}
	}
	return gerr
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
