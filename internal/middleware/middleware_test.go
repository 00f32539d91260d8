package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoranet/stoa/internal/session"
)

func TestWithViewer(t *testing.T) {
	s := session.New([]byte("secret"), 3600, false)

	w := httptest.NewRecorder()
	require.NoError(t, s.SignIn(w, httptest.NewRequest(http.MethodGet, "/", nil), session.Viewer{
		UserID: "user-1",
		Token:  "token-1",
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	var got *session.Viewer
	h := WithViewer(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ViewerFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "token-1", got.Token)
}

func TestRequireViewer(t *testing.T) {
	called := false
	h := RequireViewer("https://auth.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://auth.example.com", w.Header().Get("Location"))
}
