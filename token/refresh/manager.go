package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const DefaultTokenLength = 32

var (
	ErrExpired       = errors.New("refresh token expired")
	ErrReused        = errors.New("refresh token reused")
	ErrWrongAudience = errors.New("refresh token issued for another audience")
)

// Manager issues refresh tokens and rotates them. Each successful Rotate
// retires the presented token; presenting a retired token again revokes its
// whole family.
type Manager struct {
	repo   Repo
	expiry time.Duration
	length int

	mu      sync.Mutex
	retired map[string]string // retired token -> family
}

type Option func(*Manager)

func WithTokenLength(n int) Option {
	return func(m *Manager) {
		m.length = n
	}
}

func NewManager(repo Repo, expiry time.Duration, options ...Option) *Manager {
	m := &Manager{
		repo:    repo,
		expiry:  expiry,
		length:  DefaultTokenLength,
		retired: make(map[string]string),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create starts a new rotation family for userID.
func (m *Manager) Create(userID, tenantID, audience string) (*StoredRefreshToken, error) {
	return m.issue(userID, tenantID, audience, uuid.New().String())
}

func (m *Manager) issue(userID, tenantID, audience, family string) (*StoredRefreshToken, error) {
	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	rt := &StoredRefreshToken{
		Token:    hex.EncodeToString(tokenBytes),
		UserID:   userID,
		TenantID: tenantID,
		Audience: audience,
		Family:   family,
		Iat:      NowTimeFunc(),
	}
	if err := m.repo.Upsert(rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rt, nil
}

// Rotate exchanges token for a new one in the same family.
func (m *Manager) Rotate(token, audience string) (*StoredRefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if family, ok := m.retired[token]; ok {
		if _, err := m.repo.DeleteFamily(family); err != nil {
			return nil, fmt.Errorf("failed to revoke token family: %w", err)
		}
		return nil, ErrReused
	}

	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, wferrors.ErrInvalidToken
	}
	if rt.Audience != audience {
		return nil, ErrWrongAudience
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return nil, ErrExpired
	}

	next, err := m.issue(rt.UserID, rt.TenantID, rt.Audience, rt.Family)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Delete(token); err != nil {
		return nil, fmt.Errorf("failed to retire refresh token: %w", err)
	}
	m.retired[token] = rt.Family
	return next, nil
}

// Get retrieves a refresh token from storage
func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(token)
}

// Revoke ends the family token belongs to. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) error {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil
	}
	_, err = m.repo.DeleteFamily(rt.Family)
	return err
}

// RevokeAll deletes every refresh token; the development backend uses it to
// simulate a server-side session purge.
func (m *Manager) RevokeAll() (int, error) {
	all, err := m.repo.List(0, 0)
	if err != nil {
		return 0, err
	}
	for _, rt := range all {
		if err := m.repo.Delete(rt.Token); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.expiry > 0 && NowTimeFunc().Sub(rt.Iat) > m.expiry
}

// Count reports how many refresh tokens are live.
func (m *Manager) Count() (int, error) {
	all, err := m.repo.List(0, 0)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
