// Package admin holds the operations of the administrative audience. Its
// endpoints predate the response envelope, so its rest client is expected
// to be lenient.
package admin

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-workforce-client/cache"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/rest"
	"github.com/jrsteele09/go-workforce-client/tenants"
)

const (
	SystemMetricsPath = "/system/metrics"
	TenantsPath       = "/tenants"
	AuditPath         = "/audit"
)

var (
	// KeyAll is the prefix of every cached administrative query.
	KeyAll = cache.Key{"admin"}

	// KeySystemMetrics is refreshed on every data change a privileged
	// router sees, whatever the resource.
	KeySystemMetrics = KeyAll.With("system-metrics")
	KeyTenants       = KeyAll.With("tenants")
	KeyAudit         = KeyAll.With("audit")
)

// SystemMetrics is the platform-wide summary shown on the admin dashboard.
type SystemMetrics struct {
	Tenants         int       `json:"tenants"`
	Users           int       `json:"users"`
	ActiveSessions  int       `json:"activeSessions"`
	PushConnections int       `json:"pushConnections"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// AuditEvent records one administrative action.
type AuditEvent struct {
	ID       string    `json:"id"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
	At       time.Time `json:"at"`
}

type Remote struct {
	client *rest.Client
	cache  *cache.Cache
}

func NewRemote(client *rest.Client, c *cache.Cache) *Remote {
	return &Remote{client: client, cache: c}
}

func (r *Remote) SystemMetrics(ctx context.Context) (SystemMetrics, error) {
	return cache.Fetch(ctx, r.cache, KeySystemMetrics, func(ctx context.Context) (SystemMetrics, error) {
		return rest.Get[SystemMetrics](ctx, r.client, SystemMetricsPath, nil)
	})
}

// Tenants lists every tenant on the platform.
func (r *Remote) Tenants(ctx context.Context, params tenants.ListParams) (envelope.Page[tenants.Tenant], error) {
	return cache.Fetch(ctx, r.cache, KeyTenants.With(cache.Fingerprint(params)), func(ctx context.Context) (envelope.Page[tenants.Tenant], error) {
		return rest.List[tenants.Tenant](ctx, r.client, TenantsPath, params.Values())
	})
}

func (r *Remote) Audit(ctx context.Context) ([]AuditEvent, error) {
	return cache.Fetch(ctx, r.cache, KeyAudit, func(ctx context.Context) ([]AuditEvent, error) {
		return rest.Get[[]AuditEvent](ctx, r.client, AuditPath, nil)
	})
}

// SetTenantStatus suspends or reactivates a tenant.
func (r *Remote) SetTenantStatus(ctx context.Context, id string, status tenants.Status) (tenants.Tenant, error) {
	return cache.Mutate(ctx, r.cache, func(ctx context.Context) (tenants.Tenant, error) {
		body := map[string]tenants.Status{"status": status}
		return rest.Send[tenants.Tenant](ctx, r.client, http.MethodPatch, TenantsPath+"/"+url.PathEscape(id), body)
	}, KeyTenants, KeySystemMetrics, KeyAudit)
}
