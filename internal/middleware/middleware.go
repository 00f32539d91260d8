// Package middleware contains request middlewares of the web frontend.
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/agoranet/stoa/internal/metrics"
	"github.com/agoranet/stoa/internal/session"
)

type viewerCtxKey struct{}

// WithViewer injects the cookie session's viewer into the request context.
func WithViewer(s *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := s.Viewer(r); ok {
				r = r.WithContext(context.WithValue(r.Context(), viewerCtxKey{}, v))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ViewerFromContext returns the viewer put there by WithViewer.
func ViewerFromContext(ctx context.Context) (*session.Viewer, bool) {
	v, ok := ctx.Value(viewerCtxKey{}).(*session.Viewer)
	return v, ok
}

// RequireViewer redirects to the external authentication entry point when no
// viewer is present. Guarded handlers perform no data loads for anonymous
// requests.
func RequireViewer(authURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ViewerFromContext(r.Context()); !ok {
				http.Redirect(w, r, authURL, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Instrument counts requests by route pattern and status code.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			m.Requests.WithLabelValues(path, strconv.Itoa(ww.Status())).Inc()
		})
	}
}
