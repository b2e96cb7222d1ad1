// Package sqlitestore persists session tokens in a SQLite database so a CLI
// session survives between invocations.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/sessions"
	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	name          TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	expiry        INTEGER NOT NULL DEFAULT 0,
	updated_at    INTEGER NOT NULL
)`

var _ sessions.Store = (*Store)(nil)

type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, timeout: 5 * time.Second}
	ctx, cancel := s.ctx()
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session schema: %w", err)
	}
	return s, nil
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Store) Load(name string) (*oauth2.Token, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	var (
		t      oauth2.Token
		expiry int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expiry FROM sessions WHERE name = ?`, name,
	).Scan(&t.AccessToken, &t.RefreshToken, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wferrors.ErrNotFound
	}
	if err != nil {
		return nil, wferrors.Wrapf(err, "failed to load session %q", name)
	}
	t.TokenType = "Bearer"
	if expiry > 0 {
		t.Expiry = time.Unix(expiry, 0)
	}
	return &t, nil
}

func (s *Store) Save(name string, token *oauth2.Token) error {
	ctx, cancel := s.ctx()
	defer cancel()

	var expiry int64
	if !token.Expiry.IsZero() {
		expiry = token.Expiry.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (name, access_token, refresh_token, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		name, token.AccessToken, token.RefreshToken, expiry, time.Now().Unix(),
	)
	if err != nil {
		return wferrors.Wrapf(err, "failed to save session %q", name)
	}
	return nil
}

func (s *Store) Delete(name string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return wferrors.Wrapf(err, "failed to delete session %q", name)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wferrors.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
