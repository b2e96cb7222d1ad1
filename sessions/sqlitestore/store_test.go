package sqlitestore_test

import (
	"path/filepath"
	"testing"
	"time"

	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/sessions"
	"github.com/jrsteele09/go-workforce-client/sessions/sqlitestore"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func openStore(t *testing.T) (*sqlitestore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := sqlitestore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_SaveLoadDelete(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.Load("tenant")
	require.ErrorIs(t, err, wferrors.ErrNotFound)

	expiry := time.Unix(1900000000, 0)
	require.NoError(t, s.Save("tenant", &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: expiry}))
	require.NoError(t, s.Save("tenant", &oauth2.Token{AccessToken: "a2", RefreshToken: "r2", Expiry: expiry}))

	got, err := s.Load("tenant")
	require.NoError(t, err)
	require.Equal(t, "a2", got.AccessToken)
	require.Equal(t, "r2", got.RefreshToken)
	require.True(t, expiry.Equal(got.Expiry))

	require.NoError(t, s.Delete("tenant"))
	require.ErrorIs(t, s.Delete("tenant"), wferrors.ErrNotFound)
}

func TestStore_SurvivesReopen(t *testing.T) {
	s, path := openStore(t)
	session := sessions.New("admin", sessions.WithStore(s))
	require.NoError(t, session.Set("access", "refresh"))
	require.NoError(t, s.Close())

	reopened, err := sqlitestore.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	restored := sessions.New("admin", sessions.WithStore(reopened))
	found, err := restored.Load()
	require.NoError(t, err)
	require.True(t, found)

	access, refresh := restored.Get()
	require.Equal(t, "access", access)
	require.Equal(t, "refresh", refresh)
}
