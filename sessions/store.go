package sessions

import "golang.org/x/oauth2"

// Store persists session tokens outside the process, keyed by session name.
// Load returns internal/errors.ErrNotFound when nothing is stored.
type Store interface {
	Load(name string) (*oauth2.Token, error)
	Save(name string, token *oauth2.Token) error
	Delete(name string) error
}
