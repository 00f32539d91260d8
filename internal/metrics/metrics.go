// Package metrics contains prometheus collectors of the web frontend.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics ...
type Metrics struct {
	Requests        *prometheus.CounterVec
	PostsCreated    prometheus.Counter
	PostsDeleted    prometheus.Counter
	CommentsCreated prometheus.Counter
	LikesToggled    *prometheus.CounterVec
	FollowsToggled  *prometheus.CounterVec
	BackendErrors   *prometheus.CounterVec
}

// New creates and registers collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by path and status code",
			},
			[]string{"path", "code"},
		),
		PostsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posts_created_total",
			Help: "Total number of created posts",
		}),
		PostsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posts_deleted_total",
			Help: "Total number of deleted posts",
		}),
		CommentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comments_created_total",
			Help: "Total number of created comments",
		}),
		LikesToggled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "likes_toggled_total",
				Help: "Total number of like toggles by action",
			},
			[]string{"action"},
		),
		FollowsToggled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "follows_toggled_total",
				Help: "Total number of follow toggles by action",
			},
			[]string{"action"},
		),
		BackendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_errors_total",
				Help: "Total number of failed backend calls by operation",
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.Requests,
		m.PostsCreated,
		m.PostsDeleted,
		m.CommentsCreated,
		m.LikesToggled,
		m.FollowsToggled,
		m.BackendErrors,
	)

	return m
}
