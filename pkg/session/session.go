// Package session keeps logged-in consumers and vendors in memory, keyed by a random cookie token.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role tells which kind of account owns a session.
type Role string

const (
	Consumer Role = "consumer"
	Vendor   Role = "vendor"
)

// CookieName is the cookie carrying the session token.
const CookieName = "mosspay_session"

// DefaultTTL is how long an idle session stays valid.
const DefaultTTL = 24 * time.Hour

// Session is one logged-in account.
type Session struct {
	Token     string
	Role      Role
	AccountID int64
	ExpiresAt time.Time
}

// Store is a concurrency-safe token table.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates an empty store; ttl <= 0 uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{sessions: make(map[string]Session), ttl: ttl, now: time.Now}
}

// Create issues a fresh token for the account.
func (s *Store) Create(role Role, accountID int64) Session {
	sess := Session{
		Token:     uuid.NewString(),
		Role:      role,
		AccountID: accountID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess
}

// Lookup returns the live session for token, dropping it if it has expired.
func (s *Store) Lookup(token string) (Session, bool) {
	if _, err := uuid.Parse(token); err != nil {
		return Session{}, false
	}
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if s.now().After(sess.ExpiresAt) {
		s.Delete(token)
		return Session{}, false
	}
	return sess, true
}

// Delete forgets a token.
func (s *Store) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Len reports the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// FromRequest resolves the request's session cookie, optionally requiring a role.
func (s *Store) FromRequest(r *http.Request, role Role) (Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return Session{}, false
	}
	sess, ok := s.Lookup(cookie.Value)
	if !ok || (role != "" && sess.Role != role) {
		return Session{}, false
	}
	return sess, true
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, sess Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie in the browser.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
