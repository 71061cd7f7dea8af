package api

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the bearer token shared by every client built on it.
// Subscribers are told about each change, including Clear.
type Session struct {
	mu     sync.RWMutex
	token  string
	nextID int
	subs   map[int]func(token string)
}

// NewSession returns a session seeded with token (may be empty).
func NewSession(token string) *Session {
	return &Session{token: token, subs: make(map[int]func(string))}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Set(token string) {
	s.mu.Lock()
	s.token = token
	subs := s.snapshot()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(token)
	}
}

// Clear drops the token, e.g. after the server rejected it.
func (s *Session) Clear() { s.Set("") }

// Subscribe registers fn for token changes and returns its unsubscribe.
func (s *Session) Subscribe(fn func(token string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) snapshot() []func(string) {
	out := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

// Expired reports whether the token is a JWT whose exp lies before now.
// The signature is not checked; the server stays the authority. Opaque
// tokens never count as expired.
func (s *Session) Expired(now time.Time) bool {
	tok := s.Token()
	if tok == "" {
		return false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(now)
}

// check returns the token or the auth error that prevents a request.
func (s *Session) check(now time.Time) (string, error) {
	if s == nil {
		return "", ErrNoSession
	}
	tok := s.Token()
	if tok == "" {
		return "", ErrNoSession
	}
	if s.Expired(now) {
		return "", ErrSessionExpired
	}
	return tok, nil
}
