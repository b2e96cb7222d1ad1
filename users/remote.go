package users

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-workforce-client/cache"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/rest"
)

// Path is the users collection of the caller's tenant.
const Path = "/users"

// KeyAll is the prefix of every cached user query.
var KeyAll = cache.Key{"users"}

func KeyList(params ListParams) cache.Key {
	return KeyAll.With("list", cache.Fingerprint(params))
}

func KeyDetail(id string) cache.Key {
	return KeyAll.With("detail", id)
}

// KeyMe is the signed-in user's own profile.
var KeyMe = KeyAll.With("me")

func (p ListParams) Values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Department != "" {
		q.Set("department", p.Department)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}

// ImportResult reports a bulk user import.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

// Remote reads users through the cache and writes them directly,
// invalidating cached user queries on success.
type Remote struct {
	client *rest.Client
	cache  *cache.Cache
}

func NewRemote(client *rest.Client, c *cache.Cache) *Remote {
	return &Remote{client: client, cache: c}
}

func (r *Remote) List(ctx context.Context, params ListParams) (envelope.Page[User], error) {
	return cache.Fetch(ctx, r.cache, KeyList(params), func(ctx context.Context) (envelope.Page[User], error) {
		return rest.List[User](ctx, r.client, Path, params.Values())
	})
}

func (r *Remote) Get(ctx context.Context, id string) (User, error) {
	return cache.Fetch(ctx, r.cache, KeyDetail(id), func(ctx context.Context) (User, error) {
		return rest.Get[User](ctx, r.client, Path+"/"+url.PathEscape(id), nil)
	})
}

func (r *Remote) Me(ctx context.Context) (User, error) {
	return cache.Fetch(ctx, r.cache, KeyMe, func(ctx context.Context) (User, error) {
		return rest.Get[User](ctx, r.client, Path+"/me", nil)
	})
}

func (r *Remote) Create(ctx context.Context, in Input) (User, error) {
	return cache.Mutate(ctx, r.cache, func(ctx context.Context) (User, error) {
		return rest.Send[User](ctx, r.client, http.MethodPost, Path, in)
	}, KeyAll)
}

func (r *Remote) Update(ctx context.Context, id string, in Input) (User, error) {
	return cache.Mutate(ctx, r.cache, func(ctx context.Context) (User, error) {
		return rest.Send[User](ctx, r.client, http.MethodPut, Path+"/"+url.PathEscape(id), in)
	}, KeyAll)
}

func (r *Remote) Delete(ctx context.Context, id string) error {
	_, err := cache.Mutate(ctx, r.cache, func(ctx context.Context) (struct{}, error) {
		return rest.Send[struct{}](ctx, r.client, http.MethodDelete, Path+"/"+url.PathEscape(id), nil)
	}, KeyAll)
	return err
}

// Import uploads a CSV of users.
func (r *Remote) Import(ctx context.Context, filename string, csv []byte) (ImportResult, error) {
	return cache.Mutate(ctx, r.cache, func(ctx context.Context) (ImportResult, error) {
		return rest.Upload[ImportResult](ctx, r.client, Path+"/import", rest.Form{
			Files: []rest.File{{Field: "file", Name: filename, ContentType: "text/csv", Data: csv}},
		})
	}, KeyAll)
}

// Export downloads the tenant's users as CSV.
func (r *Remote) Export(ctx context.Context) (*rest.RawResponse, error) {
	return r.client.Raw(ctx, http.MethodGet, Path+"/export", nil)
}
