package fakesessionstore

import (
	"sync"

	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/sessions"
	"golang.org/x/oauth2"
)

var _ sessions.Store = (*FakeSessionStore)(nil)

type FakeSessionStore struct {
	tokens map[string]oauth2.Token
	saves  int
	lock   sync.RWMutex
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		tokens: make(map[string]oauth2.Token),
	}
}

func (ss *FakeSessionStore) Load(name string) (*oauth2.Token, error) {
	ss.lock.RLock()
	defer ss.lock.RUnlock()
	t, ok := ss.tokens[name]
	if !ok {
		return nil, wferrors.ErrNotFound
	}
	return &t, nil
}

func (ss *FakeSessionStore) Save(name string, token *oauth2.Token) error {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.tokens[name] = *token
	ss.saves++
	return nil
}

func (ss *FakeSessionStore) Delete(name string) error {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if _, ok := ss.tokens[name]; !ok {
		return wferrors.ErrNotFound
	}
	delete(ss.tokens, name)
	return nil
}

// Saves reports how many times Save was called.
func (ss *FakeSessionStore) Saves() int {
	ss.lock.RLock()
	defer ss.lock.RUnlock()
	return ss.saves
}
