package invalidation

import (
	"github.com/jrsteele09/go-workforce-client/admin"
	"github.com/jrsteele09/go-workforce-client/cache"
	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/jrsteele09/go-workforce-client/users"
)

// Resource is a resource name carried by a data:changed event.
type Resource string

const (
	ResourceTenants     Resource = "tenants"
	ResourceUsers       Resource = "users"
	ResourceDepartments Resource = "departments"
	ResourceGoals       Resource = "goals"
	ResourceReviews     Resource = "reviews"
	ResourceFeedback    Resource = "feedback"
	ResourceBilling     Resource = "billing"
	ResourceCompliance  Resource = "compliance"
	ResourceAnalytics   Resource = "analytics"
	ResourceAudit       Resource = "audit"
)

// Cache keys of domains that have no package in this module.
var (
	KeyDepartments  = cache.Key{"departments"}
	KeyOrgChart     = cache.Key{"org-chart"}
	KeyGoals        = cache.Key{"goals"}
	KeyReviews      = cache.Key{"reviews"}
	KeyReviewCycles = cache.Key{"review-cycles"}
	KeyFeedback     = cache.Key{"feedback"}
	KeyBilling      = cache.Key{"billing"}
	KeyCompliance   = cache.Key{"compliance"}
	KeyAnalytics    = cache.Key{"analytics"}
	KeyDashboard    = cache.Key{"dashboard"}
)

// table maps each resource to the key prefixes it invalidates. It is
// never modified after init.
var table = map[Resource][]cache.Key{
	ResourceTenants:     {tenants.KeyAll, admin.KeyTenants},
	ResourceUsers:       {users.KeyAll, KeyOrgChart, KeyDashboard},
	ResourceDepartments: {KeyDepartments, KeyOrgChart},
	ResourceGoals:       {KeyGoals, KeyDashboard},
	ResourceReviews:     {KeyReviews, KeyReviewCycles, KeyDashboard},
	ResourceFeedback:    {KeyFeedback},
	ResourceBilling:     {KeyBilling},
	ResourceCompliance:  {KeyCompliance},
	ResourceAnalytics:   {KeyAnalytics, KeyDashboard},
	ResourceAudit:       {admin.KeyAudit},
}

// AllResources lists every known resource.
func AllResources() []Resource {
	return []Resource{
		ResourceTenants,
		ResourceUsers,
		ResourceDepartments,
		ResourceGoals,
		ResourceReviews,
		ResourceFeedback,
		ResourceBilling,
		ResourceCompliance,
		ResourceAnalytics,
		ResourceAudit,
	}
}

// ParseResource reports whether name is a known resource.
func ParseResource(name string) (Resource, bool) {
	r := Resource(name)
	_, ok := table[r]
	return r, ok
}

// KeysFor returns a copy of the keys mapped from r.
func KeysFor(r Resource) []cache.Key {
	keys := table[r]
	out := make([]cache.Key, len(keys))
	copy(out, keys)
	return out
}
