package postgrest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoranet/stoa/internal/backend"
	"github.com/agoranet/stoa/internal/entities"
)

const testAPIKey = "anon-key"

func newTestClient(t *testing.T, h http.HandlerFunc) backend.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(srv.Client(), srv.URL, testAPIKey)
}

func Test_headers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer viewer-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		w.Write([]byte(`[{"id":"post-1","owner_id":"user-1","content":"hi"}]`)) // nolint:errcheck
	})

	_, err := c.CreatePost(context.Background(), "viewer-token", &backend.CreatePostParams{
		ID:        "post-1",
		OwnerID:   "user-1",
		Content:   "hi",
		CreatedAt: time.Unix(100, 0),
	})
	require.NoError(t, err)
}

func Test_headers_anonymousReadUsesAPIKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`)) // nolint:errcheck
	})

	_, err := c.ListPosts(context.Background(), &backend.ListPostsParams{})
	require.NoError(t, err)
}

func Test_ListPosts_query(t *testing.T) {
	owner := "user-1"

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/posts", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "*,author:profiles(*)", q.Get("select"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "eq.user-1", q.Get("owner_id"))
		assert.Equal(t, "20", q.Get("limit"))

		w.Write([]byte(`[
			{"id":"post-1","owner_id":"user-1","content":"hi","created_at":"2024-01-02T03:04:05Z",
			 "author":{"id":"user-1","username":"someone","display_name":"Someone"}}
		]`)) // nolint:errcheck
	})

	posts, err := c.ListPosts(context.Background(), &backend.ListPostsParams{Owner: &owner, Limit: 20})
	require.NoError(t, err)
	require.Len(t, posts, 1)

	expected := &entities.Post{
		ID:        "post-1",
		OwnerID:   "user-1",
		Content:   "hi",
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Author: &entities.Profile{
			ID:          "user-1",
			Username:    "someone",
			DisplayName: "Someone",
		},
	}
	assert.Equal(t, expected, posts[0], spew.Sdump(posts[0]))
}

func Test_CountLikes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/rest/v1/likes", r.URL.Path)
		assert.Equal(t, "eq.post-1", r.URL.Query().Get("post_id"))
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))

		w.Header().Set("Content-Range", "0-24/3851")
		w.WriteHeader(http.StatusOK)
	})

	v, err := c.CountLikes(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, 3851, v)
}

func Test_CountFollowers_zero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("following_id"))

		w.Header().Set("Content-Range", "*/0")
		w.WriteHeader(http.StatusOK)
	})

	v, err := c.CountFollowers(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, v)
}

func Test_count_malformedContentRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.CountLikes(context.Background(), "post-1")
	assert.Error(t, err)
}

func Test_HasLiked(t *testing.T) {
	tt := []struct {
		name     string
		body     string
		expected bool
	}{
		{"row present", `[{"post_id":"post-1","user_id":"user-1"}]`, true},
		{"no row", `[]`, false},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, "eq.post-1", q.Get("post_id"))
				assert.Equal(t, "eq.user-1", q.Get("user_id"))
				assert.Equal(t, "1", q.Get("limit"))

				w.Write([]byte(tc.body)) // nolint:errcheck
			})

			v, err := c.HasLiked(context.Background(), "post-1", "user-1")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func Test_Unlike_filters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/rest/v1/likes", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "eq.post-1", q.Get("post_id"))
		assert.Equal(t, "eq.user-1", q.Get("user_id"))

		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Unlike(context.Background(), "token", "post-1", "user-1"))
}

func Test_ListComments_order(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/comments", r.URL.Path)
		assert.Equal(t, "created_at.asc", r.URL.Query().Get("order"))
		assert.Equal(t, "eq.post-1", r.URL.Query().Get("post_id"))

		w.Write([]byte(`[]`)) // nolint:errcheck
	})

	_, err := c.ListComments(context.Background(), "post-1")
	require.NoError(t, err)
}

func Test_GetProfile_notFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`)) // nolint:errcheck
	})

	_, err := c.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func Test_CurrentUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer viewer-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{"id":"user-1","email":"u@example.com"}`)) // nolint:errcheck
	})

	u, err := c.CurrentUser(context.Background(), "viewer-token")
	require.NoError(t, err)
	assert.Equal(t, &entities.User{ID: "user-1", Email: "u@example.com"}, u)
}

func Test_CurrentUser_emptyToken(t *testing.T) {
	c := New(http.DefaultClient, "http://localhost", testAPIKey)

	_, err := c.CurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
}

func Test_unauthorizedMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.CurrentUser(context.Background(), "stale-token")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	err = c.Like(context.Background(), "stale-token", "post-1", "user-1")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
}

func Test_serviceErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"duplicate key value violates unique constraint"}`)) // nolint:errcheck
	})

	err := c.Like(context.Background(), "token", "post-1", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key value")
}

func Test_contextCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListPosts(ctx, &backend.ListPostsParams{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_Ping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "*/1")
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.Ping(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "backend", c.Name())
}
