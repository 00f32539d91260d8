package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, w *httptest.ResponseRecorder) *http.Request {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	return r
}

func TestStore_SignIn(t *testing.T) {
	s := New([]byte("secret"), 3600, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := s.Viewer(r)
	assert.False(t, ok)

	require.NoError(t, s.SignIn(w, r, Viewer{UserID: "user-1", Token: "token-1"}))

	v, ok := s.Viewer(roundTrip(t, w))
	require.True(t, ok)
	assert.Equal(t, "user-1", v.UserID)
	assert.Equal(t, "token-1", v.Token)
}

func TestStore_SignOut(t *testing.T) {
	s := New([]byte("secret"), 3600, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, s.SignIn(w, r, Viewer{UserID: "user-1", Token: "token-1"}))

	r = roundTrip(t, w)
	w = httptest.NewRecorder()
	require.NoError(t, s.SignOut(w, r))

	// the reissued cookie must not authenticate
	_, ok := s.Viewer(roundTrip(t, w))
	assert.False(t, ok)
}

func TestStore_Flashes(t *testing.T) {
	s := New([]byte("secret"), 3600, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	s.Flash(w, r, "something went wrong")

	r = roundTrip(t, w)
	w = httptest.NewRecorder()
	assert.Equal(t, []string{"something went wrong"}, s.PopFlashes(w, r))

	// popped flashes are gone
	r = roundTrip(t, w)
	w = httptest.NewRecorder()
	assert.Empty(t, s.PopFlashes(w, r))
}
