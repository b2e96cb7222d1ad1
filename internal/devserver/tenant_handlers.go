package devserver

import (
	"net/http"
	"slices"

	"github.com/jrsteele09/go-workforce-client/token/jwt"
	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/jrsteele09/go-workforce-client/users"
)

func tenantParams(r *http.Request) tenants.ListParams {
	q := r.URL.Query()
	return tenants.ListParams{
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
		Status: tenants.Status(q.Get("status")),
		Search: q.Get("search"),
	}
}

func isSuperAdmin(c *jwt.Claims) bool {
	return slices.Contains(c.Roles, string(users.RoleSuperAdmin))
}

// canSeeTenant reports whether the caller may read tenantID.
func canSeeTenant(c *jwt.Claims, tenantID string) bool {
	return isSuperAdmin(c) || c.Tenant == tenantID
}

func (s *Server) ListTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		params := tenantParams(r)
		if isSuperAdmin(claims) {
			list, total, err := s.tenants.List(params)
			if err != nil {
				writeError(w, err)
				return
			}
			writePage(w, list, params.Page, params.Limit, total)
			return
		}

		own := []*tenants.Tenant{}
		if t, err := s.tenants.Get(claims.Tenant); err == nil && (params.Status == "" || params.Status == t.Status) {
			own = append(own, t)
		}
		writePage(w, own, params.Page, params.Limit, len(own))
	}
}

func (s *Server) GetTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !canSeeTenant(claimsFrom(r.Context()), id) {
			writeFail(w, http.StatusNotFound, "Resource not found", "NOT_FOUND")
			return
		}
		t, err := s.tenants.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, t)
	}
}

func (s *Server) CreateTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in tenants.Input
		if !decodeJSON(w, r, &in) || s.validationFailed(w, in) {
			return
		}
		if _, err := s.tenants.Get(in.Slug); err == nil {
			writeFail(w, http.StatusConflict, "Tenant "+in.Slug+" already exists", "CONFLICT")
			return
		}
		now := NowTimeFunc().UTC()
		t := &tenants.Tenant{ID: in.Slug, Status: tenants.StatusTrial, CreatedAt: now, UpdatedAt: now}
		t.Apply(in)
		if err := s.tenants.Upsert(t); err != nil {
			writeError(w, err)
			return
		}
		s.changed(claimsFrom(r.Context()), t.ID, "tenants", "create")
		writeOK(w, http.StatusCreated, t)
	}
}

func (s *Server) UpdateTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		claims := claimsFrom(r.Context())
		if !canSeeTenant(claims, id) {
			writeFail(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
			return
		}
		var in tenants.Input
		if !decodeJSON(w, r, &in) || s.validationFailed(w, in) {
			return
		}
		t, err := s.tenants.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		t.Apply(in)
		t.UpdatedAt = NowTimeFunc().UTC()
		if err := s.tenants.Upsert(t); err != nil {
			writeError(w, err)
			return
		}
		s.changed(claims, id, "tenants", "update")
		writeOK(w, http.StatusOK, t)
	}
}

func (s *Server) DeleteTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := s.tenants.Delete(id); err != nil {
			writeError(w, err)
			return
		}
		s.changed(claimsFrom(r.Context()), id, "tenants", "delete")
		writeOK(w, http.StatusOK, struct{}{})
	}
}

// changed records an audit event and tells tenantID's push subscribers,
// and every administrative subscriber, that resource changed.
func (s *Server) changed(actor *jwt.Claims, tenantID, resource, action string) {
	who := ""
	if actor != nil {
		who = actor.Subject
	}
	s.audit.record(who, action, resource+"/"+tenantID)
	s.hub.Publish(tenantID, resource, action)
}
