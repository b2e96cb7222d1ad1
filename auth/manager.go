// Package auth keeps an authenticated session alive across access token
// expiry. It attaches the access token to outgoing requests and, when a
// request comes back 401, refreshes the token pair once and re-issues the
// request so the caller never observes the intermediate 401.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-workforce-client/apierror"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/internal/config"
	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
	"github.com/jrsteele09/go-workforce-client/sessions"
	"github.com/jrsteele09/go-workforce-client/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Manager owns one Session and enforces the refresh-then-retry contract for
// the transport it is installed on. Tenant and administrative audiences each
// get their own Manager; they share nothing.
type Manager struct {
	session   *sessions.Session
	endpoints config.Endpoints
	client    *transport.Client
	validator *Validator
	lenient   bool

	onUnauthenticated func()

	refreshGroup singleflight.Group

	subsMu  sync.RWMutex
	subs    map[int]func(Event)
	nextSub int

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

var _ oauth2.TokenSource = (*Manager)(nil)

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithUnauthenticatedHandler sets the func called when the session is torn
// down after an unrecoverable refresh failure. The application navigates to
// its login entry point from here.
func WithUnauthenticatedHandler(fn func()) ManagerOption {
	return func(m *Manager) {
		m.onUnauthenticated = fn
	}
}

// WithLenientEnvelope accepts bare {data} bodies from the session endpoints.
func WithLenientEnvelope() ManagerOption {
	return func(m *Manager) {
		m.lenient = true
	}
}

// WithJWTAccessTokens rejects token pairs whose access token is not a JWT.
func WithJWTAccessTokens() ManagerOption {
	return func(m *Manager) {
		m.validator = NewValidator(true)
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager for session using the given session
// endpoints. It does nothing until installed on a transport.
func NewManager(session *sessions.Session, endpoints config.Endpoints, options ...ManagerOption) *Manager {
	m := &Manager{
		session:   session,
		endpoints: endpoints,
		validator: NewValidator(false),
		subs:      make(map[int]func(Event)),
		logger:    log.Logger.With().Str("component", "auth").Str("audience", session.Name()).Logger(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Install registers the manager's interceptors on c. Session calls (login,
// refresh, logout) go through c as anonymous requests.
func (m *Manager) Install(c *transport.Client) {
	m.client = c
	c.Use(m.Attach, m.HandleResponse)
}

func (m *Manager) Session() *sessions.Session {
	return m.session
}

func (m *Manager) Audience() string {
	return m.session.Name()
}

// Attach sets the bearer header when an access token is held and leaves the
// request unauthenticated otherwise.
func (m *Manager) Attach(_ context.Context, req *transport.Request) error {
	if req.Anonymous {
		return nil
	}
	access, _ := m.session.Get()
	if access == "" {
		req.Header.Del("Authorization")
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+access)
	return nil
}

// HandleResponse is the response interceptor. It acts only on a 401 for a
// request that has not been retried yet:
//
//  1. the request is marked retried;
//  2. if the token pair rotated since the request was sent, it is re-issued
//     with the current token and no refresh is made;
//  3. otherwise the pair is refreshed (concurrent callers share one refresh)
//     and the request is re-issued with the new token;
//  4. if the refresh fails the session is cleared, the unauthenticated
//     handler fires, and the caller gets an AUTH_EXPIRED APIError.
//
// A 401 on the re-issued request is returned as an ordinary response.
func (m *Manager) HandleResponse(ctx context.Context, c *transport.Client, resp *transport.Response) (*transport.Response, error) {
	req := resp.Request
	if resp.StatusCode != http.StatusUnauthorized || req == nil || req.Retried || req.Anonymous {
		return resp, nil
	}
	req.Retried = true

	sent := transport.BearerToken(req.Header)
	if current, _ := m.session.Get(); current != "" && current != sent {
		m.logger.Debug().Str("path", req.Path).Msg("token rotated while request was in flight, retrying")
		return c.Do(ctx, req)
	}

	if err := m.refresh(ctx, sent); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, apierror.NewAuthExpired(err)
	}
	return c.Do(ctx, req)
}

// refresh exchanges the refresh token for a new pair. Concurrent calls
// share a single in-flight exchange. Any failure is fatal to the session.
// sent is the access token the failed request carried; if the pair has
// already moved past it there is nothing to do.
//
// A caller whose ctx ends while it waits gets a ConnectivityError; the
// exchange itself carries on for the other waiters.
func (m *Manager) refresh(ctx context.Context, sent string) error {
	// Bounded by the transport timeout, not by any one waiting caller.
	detached := context.WithoutCancel(ctx)

	ch := m.refreshGroup.DoChan(refreshKey, func() (any, error) {
		access, refreshToken := m.session.Get()
		if access != "" && access != sent {
			return nil, nil
		}
		if refreshToken == "" {
			m.teardown(ErrNoRefreshToken)
			return nil, ErrNoRefreshToken
		}

		pair, err := m.exchange(detached, m.endpoints.Refresh, oauthmodel.RefreshRequest{RefreshToken: refreshToken})
		if err != nil {
			m.metrics.ObserveRefresh(m.Audience(), false)
			m.teardown(err)
			return nil, err
		}
		if err := m.session.Set(pair.AccessToken, pair.RefreshToken); err != nil {
			m.logger.Warn().Err(err).Msg("refreshed tokens were not persisted")
		}
		m.metrics.ObserveRefresh(m.Audience(), true)
		m.logger.Debug().Msg("token pair refreshed")
		m.emit(EventRefreshed)
		return nil, nil
	})
	select {
	case <-ctx.Done():
		m.logger.Debug().Err(ctx.Err()).Msg("stopped waiting for token refresh")
		return apierror.FromTransportError(ctx.Err())
	case res := <-ch:
		if res.Shared {
			m.logger.Debug().Msg("refresh shared with concurrent requests")
		}
		return res.Err
	}
}

// teardown clears the session after a failed refresh. The unauthenticated
// handler fires only when tokens were actually held, so one teardown
// signals once however many requests were waiting on the refresh.
func (m *Manager) teardown(cause error) {
	if !m.session.Clear() {
		return
	}
	m.metrics.ObserveTeardown(m.Audience())
	if apierror.KindOf(cause) == apierror.KindConnectivity {
		m.logger.Warn().Err(cause).Msg("token refresh could not reach server, session cleared")
	} else {
		m.logger.Info().Err(cause).Msg("token refresh rejected, session cleared")
	}
	m.emit(EventCleared)
	if m.onUnauthenticated != nil {
		m.onUnauthenticated()
	}
}

// exchange posts body to a session endpoint and returns the validated pair.
func (m *Manager) exchange(ctx context.Context, path string, body any) (*oauthmodel.TokenPair, error) {
	if m.client == nil {
		return nil, ErrNoTransport
	}
	req, err := transport.NewJSONRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Anonymous = true
	req.Retried = true

	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, apierror.FromResponse(resp.StatusCode, resp.Body)
	}

	unwrap := envelope.Unwrap[oauthmodel.TokenPair]
	if m.lenient {
		unwrap = envelope.UnwrapLenient[oauthmodel.TokenPair]
	}
	pair, err := unwrap(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, err
	}
	if err := m.validator.ValidateTokenPair(&pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Login exchanges credentials for a token pair and establishes the session.
func (m *Manager) Login(ctx context.Context, creds oauthmodel.LoginRequest) (*oauthmodel.Principal, error) {
	if err := m.validator.ValidateLogin(creds); err != nil {
		return nil, err
	}
	pair, err := m.exchange(ctx, m.endpoints.Login, creds)
	if err != nil {
		return nil, err
	}
	if err := m.session.Set(pair.AccessToken, pair.RefreshToken); err != nil {
		m.logger.Warn().Err(err).Msg("login tokens were not persisted")
	}
	m.logger.Info().Str("email", creds.Email).Msg("session established")
	m.emit(EventEstablished)
	return pair.User, nil
}

// Logout tells the server to revoke the session, then clears it locally
// whatever the server said. Listeners see EventCleared; the unauthenticated
// handler does not fire, since the user asked for this.
func (m *Manager) Logout(ctx context.Context) error {
	_, refreshToken := m.session.Get()
	if m.session.IsAuthenticated() && m.client != nil {
		req, err := transport.NewJSONRequest(http.MethodPost, m.endpoints.Logout, oauthmodel.LogoutRequest{RefreshToken: refreshToken})
		if err == nil {
			req.Retried = true
			resp, err := m.client.Do(ctx, req)
			switch {
			case err != nil:
				m.logger.Warn().Err(err).Msg("logout call failed, clearing session locally")
			case !resp.OK():
				m.logger.Info().Int("status", resp.StatusCode).Msg("server rejected logout, clearing session locally")
			}
		}
	}

	if m.session.Clear() {
		m.emit(EventCleared)
	}
	return nil
}

// Restore loads persisted tokens and, when found, establishes the session
// without contacting the server. An expired access token is refreshed on
// the first 401 as usual.
func (m *Manager) Restore() (bool, error) {
	found, err := m.session.Load()
	if err != nil {
		return false, fmt.Errorf("failed to restore %s session: %w", m.Audience(), err)
	}
	if found {
		m.emit(EventEstablished)
	}
	return found, nil
}

// Token implements oauth2.TokenSource with the current access token. It
// never refreshes.
func (m *Manager) Token() (*oauth2.Token, error) {
	t := m.session.Token()
	if t == nil || t.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return t, nil
}
