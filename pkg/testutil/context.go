package testutil

import (
	"net/http"
	"time"

	"confreg/pkg/requestcontext"
)

// WithRequestTime pins the request-scoped clock, as the RequestTime
// middleware would.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID sets the correlation id on the context and the header.
func WithRequestID(req *http.Request, id string) *http.Request {
	req.Header.Set("X-Request-ID", id)
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}

// WithAdminToken sets the operator token header.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set("X-Admin-Token", token)
	return req
}
