// Package sanity is a small client for the Sanity content lake HTTP API:
// GROQ queries, mutations and file asset uploads.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"confreg/internal/platform/config"
	"confreg/pkg/platform/sentinel"
)

const maxErrorBody = 64 << 10

// Client talks to one project and dataset with a server-side token.
type Client struct {
	http       *http.Client
	baseURL    string
	dataset    string
	apiVersion string
	token      string
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBaseURL points the client at a different host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// New creates a client for cfg.
func New(cfg config.Sanity, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID),
		dataset:    cfg.Dataset,
		apiVersion: strings.TrimPrefix(cfg.APIVersion, "v"),
		token:      cfg.Token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-success response from the API.
type APIError struct {
	Status      int
	Type        string
	Description string
	Body        string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("sanity: %d %s: %s", e.Status, e.Type, e.Description)
	}
	return fmt.Sprintf("sanity: status %d", e.Status)
}

// Query runs a GROQ query and decodes the "result" member into out.
// Params are JSON-encoded and passed as $name query parameters.
func (c *Client) Query(ctx context.Context, groq string, params map[string]any, out any) error {
	q := url.Values{}
	q.Set("query", groq)
	for name, v := range params {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode param %s: %w", name, err)
		}
		q.Set("$"+name, string(raw))
	}
	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s", c.baseURL, c.apiVersion, c.dataset, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.do(req, &envelope); err != nil {
		return err
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return sentinel.ErrNotFound
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode query result: %w", err)
	}
	return nil
}

// Mutation is one entry of a mutate request. Exactly one field is set.
type Mutation struct {
	Create          map[string]any `json:"create,omitempty"`
	CreateOrReplace map[string]any `json:"createOrReplace,omitempty"`
	Patch           *PatchOp       `json:"patch,omitempty"`
}

// PatchOp is a partial update of one document.
type PatchOp struct {
	ID    string         `json:"id"`
	Set   map[string]any `json:"set,omitempty"`
	Unset []string       `json:"unset,omitempty"`
}

// MutateResult lists the ids touched by a mutate call.
type MutateResult struct {
	TransactionID string `json:"transactionId"`
	Results       []struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
	} `json:"results"`
}

// Mutate applies mutations in one transaction and waits for visibility.
func (c *Client) Mutate(ctx context.Context, mutations ...Mutation) (MutateResult, error) {
	body, err := json.Marshal(map[string]any{"mutations": mutations})
	if err != nil {
		return MutateResult{}, fmt.Errorf("encode mutations: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v%s/data/mutate/%s?returnIds=true&visibility=sync", c.baseURL, c.apiVersion, c.dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return MutateResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res MutateResult
	if err := c.do(req, &res); err != nil {
		return MutateResult{}, err
	}
	return res, nil
}

// Asset is an uploaded file asset document.
type Asset struct {
	ID               string `json:"_id"`
	URL              string `json:"url"`
	OriginalFilename string `json:"originalFilename"`
	MimeType         string `json:"mimeType"`
	Size             int64  `json:"size"`
}

// UploadFile stores data as a file asset.
func (c *Client) UploadFile(ctx context.Context, filename, contentType string, data []byte) (Asset, error) {
	q := url.Values{}
	q.Set("filename", filename)
	endpoint := fmt.Sprintf("%s/v%s/assets/files/%s?%s", c.baseURL, c.apiVersion, c.dataset, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return Asset{}, err
	}
	req.Header.Set("Content-Type", contentType)

	var envelope struct {
		Document Asset `json:"document"`
	}
	if err := c.do(req, &envelope); err != nil {
		return Asset{}, err
	}
	if envelope.Document.ID == "" {
		return Asset{}, errors.New("sanity: upload response missing asset id")
	}
	return envelope.Document, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return errors.Join(sentinel.ErrUnavailable, ctxErr)
		}
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode sanity response: %w", err)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return classify(resp.StatusCode, raw)
}

func classify(status int, raw []byte) error {
	apiErr := &APIError{Status: status, Body: string(raw)}
	var envelope struct {
		Error struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		apiErr.Type = envelope.Error.Type
		apiErr.Description = envelope.Error.Description
	}

	switch {
	case status == http.StatusNotFound, strings.Contains(string(raw), "documentNotFoundError"):
		return errors.Join(sentinel.ErrNotFound, apiErr)
	case status == http.StatusConflict:
		return errors.Join(sentinel.ErrConflict, apiErr)
	case status == http.StatusTooManyRequests, status >= 500:
		return errors.Join(sentinel.ErrUnavailable, apiErr)
	default:
		return apiErr
	}
}
