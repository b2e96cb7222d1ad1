package tenants

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-workforce-client/cache"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/rest"
)

// Path is the tenants collection, relative to the tenant API base URL.
const Path = "/tenants"

// KeyAll is the prefix of every cached tenant query.
var KeyAll = cache.Key{"tenants"}

func KeyList(params ListParams) cache.Key {
	return KeyAll.With("list", cache.Fingerprint(params))
}

func KeyDetail(id string) cache.Key {
	return KeyAll.With("detail", id)
}

// Values encodes the non-zero filters as query parameters.
func (p ListParams) Values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Status != "" {
		q.Set("status", string(p.Status))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}

// Remote reads tenants through the cache and writes them directly,
// invalidating cached tenant queries on success.
type Remote struct {
	client *rest.Client
	cache  *cache.Cache
}

func NewRemote(client *rest.Client, c *cache.Cache) *Remote {
	return &Remote{client: client, cache: c}
}

func (r *Remote) List(ctx context.Context, params ListParams) (envelope.Page[Tenant], error) {
	return cache.Fetch(ctx, r.cache, KeyList(params), func(ctx context.Context) (envelope.Page[Tenant], error) {
		return rest.List[Tenant](ctx, r.client, Path, params.Values())
	})
}

func (r *Remote) Get(ctx context.Context, id string) (Tenant, error) {
	return cache.Fetch(ctx, r.cache, KeyDetail(id), func(ctx context.Context) (Tenant, error) {
		return rest.Get[Tenant](ctx, r.client, Path+"/"+url.PathEscape(id), nil)
	})
}

func (r *Remote) Create(ctx context.Context, in Input) (Tenant, error) {
	return cache.Mutate(ctx, r.cache, func(ctx context.Context) (Tenant, error) {
		return rest.Send[Tenant](ctx, r.client, http.MethodPost, Path, in)
	}, KeyAll)
}

func (r *Remote) Update(ctx context.Context, id string, in Input) (Tenant, error) {
	return cache.Mutate(ctx, r.cache, func(ctx context.Context) (Tenant, error) {
		return rest.Send[Tenant](ctx, r.client, http.MethodPut, Path+"/"+url.PathEscape(id), in)
	}, KeyAll)
}

func (r *Remote) Delete(ctx context.Context, id string) error {
	_, err := cache.Mutate(ctx, r.cache, func(ctx context.Context) (struct{}, error) {
		return rest.Send[struct{}](ctx, r.client, http.MethodDelete, Path+"/"+url.PathEscape(id), nil)
	}, KeyAll)
	return err
}
