// Package sessions holds the access/refresh token pair of one client
// audience.
package sessions

import (
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Session is the token pair for one audience. Set, Clear and Load are the
// only ways to change it; the session manager owning it is the only writer.
type Session struct {
	name  string
	store Store

	// persistMu orders changes as they reach the store; mu guards token.
	persistMu sync.Mutex
	mu        sync.RWMutex
	token     *oauth2.Token
}

type Option func(*Session)

// WithStore persists every change to store under the session's name.
func WithStore(store Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// New creates an empty session. name identifies the audience ("tenant",
// "admin") and keys the persisted copy.
func New(name string, options ...Option) *Session {
	s := &Session{name: name}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Session) Name() string {
	return s.name
}

// Get returns the held tokens. Either may be empty.
func (s *Session) Get() (accessToken, refreshToken string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return "", ""
	}
	return s.token.AccessToken, s.token.RefreshToken
}

// Token returns a copy of the held token, or nil.
func (s *Session) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

func (s *Session) IsAuthenticated() bool {
	access, _ := s.Get()
	return access != ""
}

// Set replaces both tokens at once. A persistence failure is logged and
// returned but the in-memory tokens are still replaced.
func (s *Session) Set(accessToken, refreshToken string) error {
	t := NewToken(accessToken, refreshToken)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.token = t
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.Save(s.name, t); err != nil {
		log.Warn().Err(err).Str("session", s.name).Msg("failed to persist session")
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Clear drops both tokens. It reports whether the session held any.
func (s *Session) Clear() bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	had := s.token != nil && (s.token.AccessToken != "" || s.token.RefreshToken != "")
	s.token = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(s.name); err != nil && !wferrors.Is(err, wferrors.ErrNotFound) {
			log.Warn().Err(err).Str("session", s.name).Msg("failed to delete persisted session")
		}
	}
	return had
}

// Load restores the persisted tokens. It reports whether any were found.
func (s *Session) Load() (bool, error) {
	if s.store == nil {
		return false, nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	t, err := s.store.Load(s.name)
	if err != nil {
		if wferrors.Is(err, wferrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if t == nil || t.AccessToken == "" && t.RefreshToken == "" {
		return false, nil
	}

	s.mu.Lock()
	s.token = NewToken(t.AccessToken, t.RefreshToken)
	s.mu.Unlock()
	return true, nil
}

// NewToken builds a bearer token whose expiry is read from the access
// token's exp claim. Opaque access tokens get no expiry.
func NewToken(accessToken, refreshToken string) *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := AccessTokenExpiry(accessToken); ok {
		t.Expiry = exp
	}
	return t
}

// AccessTokenExpiry reads the exp claim of a JWT without verifying it.
// The client cannot verify the signature; the value is only a hint.
func AccessTokenExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
