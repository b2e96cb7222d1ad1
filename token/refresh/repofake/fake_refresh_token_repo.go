package refreshrepofake

import (
	"sort"
	"sync"

	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken
	lock   sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	cp := *refreshToken
	tr.tokens[refreshToken.Token] = &cp
	return nil
}

func (tr *FakeRefreshTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[token]; !ok {
		return wferrors.ErrNotFound
	}
	delete(tr.tokens, token)
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, wferrors.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (tr *FakeRefreshTokenRepo) DeleteFamily(family string) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	n := 0
	for k, rt := range tr.tokens {
		if rt.Family == family {
			delete(tr.tokens, k)
			n++
		}
	}
	return n, nil
}

// List returns tokens oldest first. A zero limit returns everything from
// offset.
func (tr *FakeRefreshTokenRepo) List(offset, limit int) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tokens := make([]*refresh.StoredRefreshToken, 0, len(tr.tokens))
	for _, v := range tr.tokens {
		cp := *v
		tokens = append(tokens, &cp)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Iat.Before(tokens[j].Iat)
	})

	if offset >= len(tokens) {
		return nil, nil
	}
	end := len(tokens)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return tokens[offset:end], nil
}
