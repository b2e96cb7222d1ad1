package tenantrepofakes

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	tenants map[string]*tenants.Tenant
	lock    sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{
		tenants: make(map[string]*tenants.Tenant),
	}
}

func (tr *FakeTenantRepo) Upsert(tenant *tenants.Tenant) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	stored := *tenant
	tr.tenants[tenant.ID] = &stored
	return nil
}

func (tr *FakeTenantRepo) Delete(tenantID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.tenants[tenantID]; !ok {
		return wferrors.ErrNotFound
	}
	delete(tr.tenants, tenantID)
	return nil
}

func (tr *FakeTenantRepo) Get(tenantID string) (*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	t, ok := tr.tenants[tenantID]
	if !ok {
		return nil, wferrors.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (tr *FakeTenantRepo) List(params tenants.ListParams) ([]*tenants.Tenant, int, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	matched := make([]*tenants.Tenant, 0, len(tr.tenants))
	for _, t := range tr.tenants {
		if params.Status != "" && t.Status != params.Status {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(params.Search)) {
			continue
		}
		out := *t
		matched = append(matched, &out)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID < matched[j].ID
	})

	offset, end := pageBounds(params.Page, params.Limit, len(matched))
	return matched[offset:end], len(matched), nil
}

// pageBounds converts a 1-based page and limit into slice bounds. A zero
// limit returns everything.
func pageBounds(page, limit, total int) (int, int) {
	if limit <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
