package devserver

import (
	"net/http"

	"github.com/jrsteele09/go-workforce-client/token/jwt"
	"github.com/jrsteele09/go-workforce-client/users"
)

func (s *Server) initRoutes() {
	api := func(h http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.APIMiddleware(mw...)...)
	}
	tenantAuth := s.RequireAuth(jwt.AudienceTenant)
	adminAuth := s.RequireAuth(jwt.AudienceAdmin)
	tenantAdmin := s.RequireRole(users.RoleTenantAdmin, users.RoleSuperAdmin)
	superAdmin := s.RequireRole(users.RoleSuperAdmin)

	// SESSION
	s.RegisterRouteFunc("POST "+RouteAuthLogin, api(s.LoginHandler(jwt.AudienceTenant)))
	s.RegisterRouteFunc("POST "+RouteAuthRefresh, api(s.RefreshHandler(jwt.AudienceTenant)))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, api(s.LogoutHandler(jwt.AudienceTenant)))
	s.RegisterRouteFunc("POST "+RouteAdminAuthLogin, api(s.LoginHandler(jwt.AudienceAdmin)))
	s.RegisterRouteFunc("POST "+RouteAdminAuthRefresh, api(s.RefreshHandler(jwt.AudienceAdmin)))
	s.RegisterRouteFunc("POST "+RouteAdminAuthLogout, api(s.LogoutHandler(jwt.AudienceAdmin)))

	// TENANTS
	s.RegisterRouteFunc("GET "+RouteTenants, api(s.ListTenantsHandler(), tenantAuth))
	s.RegisterRouteFunc("GET "+RouteTenant, api(s.GetTenantHandler(), tenantAuth))
	s.RegisterRouteFunc("POST "+RouteTenants, api(s.CreateTenantHandler(), tenantAuth, superAdmin))
	s.RegisterRouteFunc("PUT "+RouteTenant, api(s.UpdateTenantHandler(), tenantAuth, tenantAdmin))
	s.RegisterRouteFunc("DELETE "+RouteTenant, api(s.DeleteTenantHandler(), tenantAuth, superAdmin))

	// USERS
	s.RegisterRouteFunc("GET "+RouteUsers, api(s.ListUsersHandler(), tenantAuth))
	s.RegisterRouteFunc("GET "+RouteUsersMe, api(s.MeHandler(), tenantAuth))
	s.RegisterRouteFunc("GET "+RouteUsersExport, api(s.ExportUsersHandler(), tenantAuth, tenantAdmin))
	s.RegisterRouteFunc("GET "+RouteUser, api(s.GetUserHandler(), tenantAuth))
	s.RegisterRouteFunc("POST "+RouteUsers, api(s.CreateUserHandler(), tenantAuth, tenantAdmin))
	s.RegisterRouteFunc("POST "+RouteUsersImport, api(s.ImportUsersHandler(), tenantAuth, tenantAdmin))
	s.RegisterRouteFunc("PUT "+RouteUser, api(s.UpdateUserHandler(), tenantAuth, tenantAdmin))
	s.RegisterRouteFunc("DELETE "+RouteUser, api(s.DeleteUserHandler(), tenantAuth, tenantAdmin))

	// ADMIN
	s.RegisterRouteFunc("GET "+RouteAdminSystemMetrics, api(s.SystemMetricsHandler(), adminAuth))
	s.RegisterRouteFunc("GET "+RouteAdminTenants, api(s.AdminTenantsHandler(), adminAuth))
	s.RegisterRouteFunc("PATCH "+RouteAdminTenant, api(s.AdminTenantStatusHandler(), adminAuth, superAdmin))
	s.RegisterRouteFunc("GET "+RouteAdminAudit, api(s.AuditHandler(), adminAuth))

	// PUSH
	s.RegisterRouteFunc("GET "+RoutePushWS, ChainMiddleware(s.WebSocketHandler(), s.RecoverMiddleware))
	s.RegisterRouteFunc("POST "+RoutePushHandshake, ChainMiddleware(s.PollHandshakeHandler(), s.RecoverMiddleware))
	s.RegisterRouteFunc("GET "+RoutePushPoll, ChainMiddleware(s.PollHandler(), s.RecoverMiddleware))
	s.RegisterRouteFunc("DELETE "+RoutePushPoll, ChainMiddleware(s.PollCloseHandler(), s.RecoverMiddleware))

	// FAULTS
	s.RegisterRouteFunc("POST "+RouteFault, ChainMiddleware(s.FaultHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	s.RegisterRouteFunc("DELETE "+RouteFault, ChainMiddleware(s.FaultHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
}
