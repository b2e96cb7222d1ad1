package devserver

import (
	"net/http"

	"github.com/jrsteele09/go-workforce-client/admin"
	"github.com/jrsteele09/go-workforce-client/internal/utils"
	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/jrsteele09/go-workforce-client/users"
)

// The administrative endpoints answer with bare {data} bodies.

func (s *Server) SystemMetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, tenantCount, err := s.tenants.List(tenants.ListParams{})
		if err != nil {
			writeError(w, err)
			return
		}
		_, userCount, err := s.users.List("", users.ListParams{})
		if err != nil {
			writeError(w, err)
			return
		}
		sessions, err := s.refresh.Count()
		if err != nil {
			writeError(w, err)
			return
		}
		writeBare(w, admin.SystemMetrics{
			Tenants:         tenantCount,
			Users:           userCount,
			ActiveSessions:  sessions,
			PushConnections: s.hub.Count(),
			GeneratedAt:     NowTimeFunc().UTC(),
		}, nil)
	}
}

func (s *Server) AdminTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := tenantParams(r)
		list, total, err := s.tenants.List(params)
		if err != nil {
			writeError(w, err)
			return
		}
		meta := pageMeta(params.Page, params.Limit, total)
		writeBare(w, list, &meta)
	}
}

type statusPatch struct {
	Status *tenants.Status `json:"status" validate:"required,oneof=active suspended trial"`
}

// AdminTenantStatusHandler suspends or reactivates a tenant. Suspending a
// tenant does not end its users' sessions; new logins are refused.
func (s *Server) AdminTenantStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch statusPatch
		if !decodeJSON(w, r, &patch) || s.validationFailed(w, patch) {
			return
		}
		id := r.PathValue("id")
		t, err := s.tenants.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		t.Status = utils.ValueOr(patch.Status, t.Status)
		t.UpdatedAt = NowTimeFunc().UTC()
		if err := s.tenants.Upsert(t); err != nil {
			writeError(w, err)
			return
		}
		s.changed(claimsFrom(r.Context()), id, "tenants", "status")
		writeBare(w, t, nil)
	}
}

func (s *Server) AuditHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeBare(w, s.audit.list(), nil)
	}
}
