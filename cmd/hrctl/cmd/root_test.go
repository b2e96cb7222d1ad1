package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/internal/devserver"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
	"github.com/jrsteele09/go-workforce-client/push"
	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	server *devserver.Server
	db     string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	srv, err := devserver.New(devserver.WithLogger(zerolog.Nop()), devserver.WithPollWait(50*time.Millisecond))
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	t.Setenv("ORIGIN", hs.URL)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PUSH_TRANSPORTS", "polling")
	return &testFixture{server: srv, db: filepath.Join(t.TempDir(), "sessions.db")}
}

// execute runs hrctl with args and returns what it printed.
func (f *testFixture) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, sessionDB, traceCalls, asAdmin, jsonOutput = "", "", false, false, false
	tenantParams = tenants.ListParams{Page: 1, Limit: 20}
	loginPassword = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--session-db", f.db))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFormatPrincipal(t *testing.T) {
	out := formatPrincipal(&oauthmodel.Principal{Email: "ada@acme.test", TenantID: "acme", Roles: []string{"admin", "hr"}})
	require.Contains(t, out, "ada@acme.test")
	require.Contains(t, out, "acme")
	require.Contains(t, out, "admin, hr")

	out = formatPrincipal(&oauthmodel.Principal{Email: "root@workforce.test"})
	require.Contains(t, out, "Tenant:     -")
}

func TestWriteTenants(t *testing.T) {
	var buf bytes.Buffer
	page := envelope.Page[tenants.Tenant]{
		Data: []tenants.Tenant{{ID: "acme", Name: "Acme Corp", Plan: "growth", Status: tenants.StatusActive, Seats: 50}},
		Meta: envelope.Meta{Page: 1, TotalPages: 3, Total: 41},
	}
	require.NoError(t, writeTenants(&buf, page))

	out := buf.String()
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "Acme Corp")
	require.Contains(t, out, "growth")
	require.Contains(t, out, "page 1 of 3, 41 tenants")

	t.Run("single page has no footer", func(t *testing.T) {
		buf.Reset()
		page.Meta.TotalPages = 1
		require.NoError(t, writeTenants(&buf, page))
		require.NotContains(t, buf.String(), "page 1 of")
	})
}

func TestCommands(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("tenants before login", func(t *testing.T) {
		_, err := f.execute(t, "tenants")
		require.ErrorContains(t, err, "not logged in")
	})

	t.Run("login", func(t *testing.T) {
		out, err := f.execute(t, "login", "--email", "ada.admin@acme.test", "--password", devserver.DefaultPassword)
		require.NoError(t, err)
		require.Contains(t, out, "Signed in:  ada.admin@acme.test")
	})

	t.Run("tenants reuses the stored session", func(t *testing.T) {
		out, err := f.execute(t, "tenants")
		require.NoError(t, err)
		require.Contains(t, out, "Acme Corp")
		require.NotContains(t, out, "Globex")
	})

	t.Run("tenants survives an expired access token", func(t *testing.T) {
		f.server.ExpireAccessTokens()
		out, err := f.execute(t, "tenants", "--json")
		require.NoError(t, err)

		var page envelope.Page[tenants.Tenant]
		require.NoError(t, json.Unmarshal([]byte(out), &page))
		require.Len(t, page.Data, 1)
	})

	t.Run("admin audience is separate", func(t *testing.T) {
		_, err := f.execute(t, "tenants", "--admin")
		require.ErrorContains(t, err, "admin")

		_, err = f.execute(t, "login", "--admin", "--email", devserver.SystemAdminEmail, "--password", devserver.DefaultPassword)
		require.NoError(t, err)
		out, err := f.execute(t, "tenants", "--admin")
		require.NoError(t, err)
		require.Contains(t, out, "Acme Corp")
		require.Contains(t, out, "Globex")
	})

	t.Run("logout", func(t *testing.T) {
		out, err := f.execute(t, "logout")
		require.NoError(t, err)
		require.Contains(t, out, "Signed out of the tenant API")

		_, err = f.execute(t, "tenants")
		require.ErrorContains(t, err, "not logged in")
	})
}

func TestRunWatch(t *testing.T) {
	f := setupTestFixture(t)
	sessionDB = f.db
	defer func() { sessionDB = "" }()

	out := &syncWriter{w: &bytes.Buffer{}}
	c, release, err := newClient(rootCmd)
	require.NoError(t, err)
	defer release()
	_, err = c.Login(context.Background(), "ada.admin@acme.test", devserver.DefaultPassword)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, out, c.Tenant().Push) }()

	require.Eventually(t, func() bool {
		out.mu.Lock()
		defer out.mu.Unlock()
		return strings.Contains(out.w.(*bytes.Buffer).String(), push.Connected.String())
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
