package testutil

import (
	"net/http"
	"time"

	"warden/pkg/requestcontext"
)

// WithOperator marks the request as authenticated by operator, as the auth
// middleware would.
func WithOperator(req *http.Request, operator string) *http.Request {
	return req.WithContext(requestcontext.WithOperator(req.Context(), operator))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
