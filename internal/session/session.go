// Package session keeps the viewer's identity and flash notifications in a
// cookie session.
package session

import (
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("package", "session")

const cookieName = "stoa_session"

const (
	userIDKey = "user_id"
	tokenKey  = "access_token"
)

// Viewer is the authenticated visitor bound to a request.
type Viewer struct {
	UserID string
	Token  string
}

// Store wraps a cookie store with viewer and flash helpers.
type Store struct {
	s *sessions.CookieStore
}

// New creates a cookie-backed session store. An empty secret gets a random
// key, which invalidates sessions on restart.
func New(secret []byte, maxAge int, secure bool) *Store {
	if len(secret) == 0 {
		log.Warn("empty session secret, sessions will not survive restarts")
		secret = securecookie.GenerateRandomKey(32)
	}

	s := sessions.NewCookieStore(secret)
	s.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Store{s: s}
}

// Viewer extracts the signed-in viewer from the request's cookie.
func (s *Store) Viewer(r *http.Request) (*Viewer, bool) {
	sess, err := s.s.Get(r, cookieName)
	if err != nil {
		return nil, false
	}

	id, ok := sess.Values[userIDKey].(string)
	if !ok || id == "" {
		return nil, false
	}

	token, _ := sess.Values[tokenKey].(string)

	return &Viewer{UserID: id, Token: token}, true
}

// SignIn establishes the viewer's cookie session.
func (s *Store) SignIn(w http.ResponseWriter, r *http.Request, v Viewer) error {
	sess, _ := s.s.Get(r, cookieName)
	sess.Values[userIDKey] = v.UserID
	sess.Values[tokenKey] = v.Token

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// SignOut drops the viewer's cookie session.
func (s *Store) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.s.Get(r, cookieName)
	sess.Options.MaxAge = -1
	delete(sess.Values, userIDKey)
	delete(sess.Values, tokenKey)

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Flash queues a one-shot notification for the next rendered page.
func (s *Store) Flash(w http.ResponseWriter, r *http.Request, msg string) {
	sess, _ := s.s.Get(r, cookieName)
	sess.AddFlash(msg)

	if err := sess.Save(r, w); err != nil {
		log.WithError(err).Error("failed to save flash")
	}
}

// PopFlashes returns queued notifications and clears them.
func (s *Store) PopFlashes(w http.ResponseWriter, r *http.Request) []string {
	sess, err := s.s.Get(r, cookieName)
	if err != nil {
		return nil
	}

	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}

	if err := sess.Save(r, w); err != nil {
		log.WithError(err).Error("failed to clear flashes")
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
