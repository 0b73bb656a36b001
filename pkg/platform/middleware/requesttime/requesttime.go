// Package requesttime gives every operation of one HTTP request the same
// "now", so audit timestamps and domain timestamps agree.
package requesttime

import (
	"net/http"
	"time"

	"backoffice/pkg/requestcontext"
)

// Middleware captures the request's start time in the context.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
