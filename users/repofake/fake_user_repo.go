package fakeuserrepo

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	email := strings.ToLower(user.Email)
	if prev, ok := ur.users[user.ID]; ok && prev.Email != email {
		delete(ur.emailIds, prev.Email)
	}
	stored := *user
	stored.Email = email
	ur.users[user.ID] = &stored
	ur.emailIds[email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return wferrors.ErrNotFound
	}
	delete(ur.emailIds, u.Email)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return nil, wferrors.ErrNotFound
	}
	out := *ur.users[id]
	return &out, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, wferrors.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (ur *FakeUserRepo) List(tenantID string, params users.ListParams) ([]*users.User, int, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0)
	for _, v := range ur.users {
		if tenantID != "" && v.TenantID != tenantID {
			continue
		}
		if params.Department != "" && v.Department != params.Department {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(v.FullName()+" "+v.Email), strings.ToLower(params.Search)) {
			continue
		}
		out := *v
		userList = append(userList, &out)
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].ID < userList[j].ID
	})

	total := len(userList)
	if params.Limit <= 0 {
		return userList, total, nil
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	offset := min((page-1)*params.Limit, total)
	end := min(offset+params.Limit, total)
	return userList[offset:end], total, nil
}

func (ur *FakeUserRepo) SetLastLogin(id string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return wferrors.ErrNotFound
	}
	u.LastLogin = at
	return nil
}
