package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-workforce-client/apierror"
	"github.com/jrsteele09/go-workforce-client/auth"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/internal/config"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
	"github.com/jrsteele09/go-workforce-client/sessions"
	"github.com/jrsteele09/go-workforce-client/transport"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "Password123"
)

var tenantEndpoints = config.Endpoints{
	Login:   "/auth/login",
	Refresh: "/auth/refresh",
	Logout:  "/auth/logout",
}

// fakeBackend issues numbered token pairs and accepts only the current
// access token on /data.
type fakeBackend struct {
	mu            sync.Mutex
	generation    int
	validAccess   string
	validRefresh  string
	refreshCalls  atomic.Int32
	dataCalls     atomic.Int32
	logoutCalls   atomic.Int32
	rejectRefresh bool
	alwaysDeny    bool
	refreshDelay  time.Duration
}

func (b *fakeBackend) issue() oauthmodel.TokenPair {
	b.generation++
	b.validAccess = fmt.Sprintf("access-%d", b.generation)
	b.validRefresh = fmt.Sprintf("refresh-%d", b.generation)
	return oauthmodel.TokenPair{AccessToken: b.validAccess, RefreshToken: b.validRefresh}
}

// expire invalidates the current access token, as its expiry would.
func (b *fakeBackend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validAccess = "expired"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		var req oauthmodel.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != testPassword {
			writeJSON(w, http.StatusUnauthorized, envelope.Fail("invalid credentials", "INVALID_CREDENTIALS"))
			return
		}
		b.mu.Lock()
		pair := b.issue()
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, envelope.OK(pair))

	case "/auth/refresh":
		b.refreshCalls.Add(1)
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		var req oauthmodel.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.rejectRefresh || req.RefreshToken != b.validRefresh {
			writeJSON(w, http.StatusUnauthorized, envelope.Fail("invalid refresh token", "INVALID_REFRESH"))
			return
		}
		writeJSON(w, http.StatusOK, envelope.OK(b.issue()))

	case "/auth/logout":
		b.logoutCalls.Add(1)
		writeJSON(w, http.StatusOK, envelope.OK[any](nil))

	case "/data":
		b.dataCalls.Add(1)
		b.mu.Lock()
		valid := !b.alwaysDeny && transport.BearerToken(r.Header) == b.validAccess
		b.mu.Unlock()
		if !valid {
			writeJSON(w, http.StatusUnauthorized, envelope.Fail("token expired", "TOKEN_EXPIRED"))
			return
		}
		writeJSON(w, http.StatusOK, envelope.OK(map[string]string{"hello": "world"}))

	default:
		http.NotFound(w, r)
	}
}

type testFixture struct {
	backend     *fakeBackend
	client      *transport.Client
	manager     *auth.Manager
	session     *sessions.Session
	unauthCalls atomic.Int32
	eventsMu    sync.Mutex
	events      []auth.Event
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{backend: &fakeBackend{}}
	srv := httptest.NewServer(f.backend)
	t.Cleanup(srv.Close)

	f.session = sessions.New("tenant")
	f.manager = auth.NewManager(f.session, tenantEndpoints,
		auth.WithUnauthenticatedHandler(func() { f.unauthCalls.Add(1) }),
	)
	f.client = transport.New(srv.URL)
	f.manager.Install(f.client)
	f.manager.Subscribe(func(e auth.Event) {
		f.eventsMu.Lock()
		defer f.eventsMu.Unlock()
		f.events = append(f.events, e)
	})
	return f
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(context.Background(), oauthmodel.LoginRequest{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
}

func (f *testFixture) get(t *testing.T) (*transport.Response, error) {
	t.Helper()
	return f.client.Do(context.Background(), transport.NewRequest(http.MethodGet, "/data"))
}

func (f *testFixture) recorded() []auth.Event {
	f.eventsMu.Lock()
	defer f.eventsMu.Unlock()
	return append([]auth.Event(nil), f.events...)
}

func TestManager_AttachesBearerToken(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("unauthenticated request has no header", func(t *testing.T) {
		req := transport.NewRequest(http.MethodGet, "/x")
		require.NoError(t, f.manager.Attach(context.Background(), req))
		require.Empty(t, req.Header.Get("Authorization"))
	})

	f.login(t)

	t.Run("authenticated request carries access token", func(t *testing.T) {
		req := transport.NewRequest(http.MethodGet, "/x")
		require.NoError(t, f.manager.Attach(context.Background(), req))
		require.Equal(t, "Bearer access-1", req.Header.Get("Authorization"))
	})

	t.Run("anonymous request is untouched", func(t *testing.T) {
		req := transport.NewRequest(http.MethodGet, "/x")
		req.Anonymous = true
		require.NoError(t, f.manager.Attach(context.Background(), req))
		require.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestManager_RefreshAndRetryIsTransparent(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.expire()

	resp, err := f.get(t)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.Request.Retried)

	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.EqualValues(t, 2, f.backend.dataCalls.Load())

	access, refresh := f.session.Get()
	require.Equal(t, "access-2", access)
	require.Equal(t, "refresh-2", refresh)
	require.Equal(t, []auth.Event{auth.EventEstablished, auth.EventRefreshed}, f.recorded())
	require.Zero(t, f.unauthCalls.Load())
}

func TestManager_RetriesAtMostOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.alwaysDeny = true

	resp, err := f.get(t)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.EqualValues(t, 2, f.backend.dataCalls.Load())
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())

	classified := apierror.FromResponse(resp.StatusCode, resp.Body)
	require.ErrorIs(t, classified, apierror.ErrAPI)
	require.NotErrorIs(t, classified, auth.ErrSessionExpired)
	require.True(t, f.session.IsAuthenticated())
}

func TestManager_RefreshFailureTearsDownOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.expire()
	f.backend.rejectRefresh = true

	_, err := f.get(t)
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	require.ErrorIs(t, err, apierror.ErrAPI)

	require.False(t, f.session.IsAuthenticated())
	require.EqualValues(t, 1, f.unauthCalls.Load())
	require.Equal(t, []auth.Event{auth.EventEstablished, auth.EventCleared}, f.recorded())

	t.Run("later 401s do not signal again", func(t *testing.T) {
		_, err := f.get(t)
		require.ErrorIs(t, err, auth.ErrSessionExpired)
		require.EqualValues(t, 1, f.unauthCalls.Load())
	})
}

func TestManager_NoRefreshTokenSkipsRefreshCall(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.session.Set("stale-access", ""))

	_, err := f.get(t)
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	require.Zero(t, f.backend.refreshCalls.Load())
	require.EqualValues(t, 1, f.unauthCalls.Load())
	require.False(t, f.session.IsAuthenticated())
}

func TestManager_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.expire()
	f.backend.refreshDelay = 100 * time.Millisecond

	const n = 10
	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.client.Do(context.Background(), transport.NewRequest(http.MethodGet, "/data"))
			errs[i] = err
			if resp != nil {
				statuses[i] = resp.StatusCode
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i])
	}
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.Zero(t, f.unauthCalls.Load())
}

func TestManager_CancelledWaiterLeavesRefreshRunning(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.expire()
	f.backend.refreshDelay = 300 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelled := make(chan error, 1)
	go func() {
		_, err := f.client.Do(ctx, transport.NewRequest(http.MethodGet, "/data"))
		cancelled <- err
	}()
	require.Eventually(t, func() bool { return f.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)

	patient := make(chan int, 1)
	go func() {
		resp, err := f.client.Do(context.Background(), transport.NewRequest(http.MethodGet, "/data"))
		if err != nil || resp == nil {
			patient <- 0
			return
		}
		patient <- resp.StatusCode
	}()

	start := time.Now()
	cancel()
	err := <-cancelled
	require.Less(t, time.Since(start), 200*time.Millisecond)
	require.Equal(t, apierror.KindConnectivity, apierror.KindOf(err))
	require.NotErrorIs(t, err, auth.ErrSessionExpired)

	require.Equal(t, http.StatusOK, <-patient)
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.Zero(t, f.unauthCalls.Load())
	require.True(t, f.session.IsAuthenticated())
}

func TestManager_ConcurrentRefreshFailureSignalsOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.expire()
	f.backend.rejectRefresh = true
	f.backend.refreshDelay = 50 * time.Millisecond

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.Do(context.Background(), transport.NewRequest(http.MethodGet, "/data"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, auth.ErrSessionExpired)
	}

	require.EqualValues(t, 1, f.unauthCalls.Load())
}

func TestManager_LoginValidation(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Login(context.Background(), oauthmodel.LoginRequest{Email: "not-an-email", Password: "x"})
	require.ErrorIs(t, err, auth.ErrInvalidCredential)

	_, err = f.manager.Login(context.Background(), oauthmodel.LoginRequest{Email: testEmail, Password: "wrong"})
	require.ErrorIs(t, err, apierror.ErrAPI)
	require.False(t, f.session.IsAuthenticated())
	require.Zero(t, f.unauthCalls.Load())
}

func TestManager_Logout(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	require.NoError(t, f.manager.Logout(context.Background()))
	require.False(t, f.session.IsAuthenticated())
	require.EqualValues(t, 1, f.backend.logoutCalls.Load())
	require.Zero(t, f.unauthCalls.Load())
	require.Equal(t, []auth.Event{auth.EventEstablished, auth.EventCleared}, f.recorded())

	_, err := f.manager.Token()
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestManager_IndependentAudiences(t *testing.T) {
	tenant := setupTestFixture(t)
	admin := setupTestFixture(t)

	tenant.login(t)
	admin.login(t)
	tenant.backend.expire()
	tenant.backend.rejectRefresh = true

	_, err := tenant.get(t)
	require.ErrorIs(t, err, auth.ErrSessionExpired)

	require.False(t, tenant.session.IsAuthenticated())
	require.True(t, admin.session.IsAuthenticated())

	resp, err := admin.get(t)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestManager_TokenSource(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Token()
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	f.login(t)
	tok, err := f.manager.Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", tok.AccessToken)
}

func TestManager_LenientRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/auth/refresh":
			writeJSON(w, http.StatusOK, map[string]any{
				"data": oauthmodel.TokenPair{AccessToken: "admin-2", RefreshToken: "admin-r2"},
			})
		case "/metrics":
			if transport.BearerToken(r.Header) != "admin-2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": 1})
		}
	}))
	defer srv.Close()

	session := sessions.New("admin")
	require.NoError(t, session.Set("admin-1", "admin-r1"))
	m := auth.NewManager(session, config.Endpoints{Refresh: "/admin/auth/refresh"}, auth.WithLenientEnvelope())
	c := transport.New(srv.URL)
	m.Install(c)

	resp, err := c.Do(context.Background(), transport.NewRequest(http.MethodGet, "/metrics"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	access, _ := session.Get()
	require.Equal(t, "admin-2", access)
}
