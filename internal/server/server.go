// Package server Stoa
//
// The Stoa is a web frontend which renders community entities (posts, likes,
// comments, follows) served by the hosted data service.
package server

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/Decentr-net/go-api"

	"github.com/agoranet/stoa/internal/backend"
	"github.com/agoranet/stoa/internal/metrics"
	mm "github.com/agoranet/stoa/internal/middleware"
	"github.com/agoranet/stoa/internal/session"
)

const maxBodySize = 16 * 1024

type server struct {
	c       backend.Client
	sess    *session.Store
	m       *metrics.Metrics
	authURL string
}

// SetupRouter setups handlers to chi router.
func SetupRouter(c backend.Client, sess *session.Store, m *metrics.Metrics, r chi.Router, timeout time.Duration, authURL string) {
	r.Use(
		api.FileServerMiddleware("/static", "static"),
		api.LoggerMiddleware,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		api.RequestIDMiddleware,
		api.RecovererMiddleware,
		api.TimeoutMiddleware(timeout),
		api.BodyLimiterMiddleware(maxBodySize),
		mm.WithViewer(sess),
		mm.Instrument(m),
	)

	srv := server{
		c:       c,
		sess:    sess,
		m:       m,
		authURL: authURL,
	}

	r.Get("/auth/callback", srv.authCallback)

	r.Group(func(r chi.Router) {
		r.Use(mm.RequireViewer(authURL))

		r.Get("/", srv.feed)
		r.Get("/profiles/{id}", srv.profile)

		r.Post("/posts", srv.createPost)
		r.Post("/posts/{id}/delete", srv.deletePost)
		r.Post("/posts/{id}/like", srv.toggleLike)
		r.Post("/posts/{id}/comments", srv.createComment)
		r.Post("/profiles/{id}/follow", srv.toggleFollow)
		r.Post("/logout", srv.logout)
	})
}
