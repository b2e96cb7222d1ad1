package tenants

// Repo stores tenants for the development server.
type Repo interface {
	Upsert(tenant *Tenant) error
	Delete(tenantID string) error
	Get(tenantID string) (*Tenant, error)
	// List returns one page of tenants ordered by ID, and the total count.
	List(params ListParams) ([]*Tenant, int, error)
}
