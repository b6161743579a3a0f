package middleware

import (
	"net/http"
	"time"

	"confreg/pkg/requestcontext"
)

// RequestTime pins one "now" for the whole request so receipt timestamps and
// status patches agree.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
