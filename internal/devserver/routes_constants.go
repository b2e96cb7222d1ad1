package devserver

// Route prefixes match the client's default API_BASE_URL,
// ADMIN_API_BASE_URL and PUSH_URL.
const (
	APIPrefix   = "/api"
	AdminPrefix = "/admin-api"
	PushPrefix  = "/push"

	// Tenant audience
	RouteAuthLogin   = APIPrefix + "/auth/login"
	RouteAuthRefresh = APIPrefix + "/auth/refresh"
	RouteAuthLogout  = APIPrefix + "/auth/logout"
	RouteTenants     = APIPrefix + "/tenants"
	RouteTenant      = APIPrefix + "/tenants/{id}"
	RouteUsers       = APIPrefix + "/users"
	RouteUser        = APIPrefix + "/users/{id}"
	RouteUsersMe     = APIPrefix + "/users/me"
	RouteUsersImport = APIPrefix + "/users/import"
	RouteUsersExport = APIPrefix + "/users/export"

	// Administrative audience
	RouteAdminAuthLogin     = AdminPrefix + "/admin/auth/login"
	RouteAdminAuthRefresh   = AdminPrefix + "/admin/auth/refresh"
	RouteAdminAuthLogout    = AdminPrefix + "/admin/auth/logout"
	RouteAdminSystemMetrics = AdminPrefix + "/system/metrics"
	RouteAdminTenants       = AdminPrefix + "/tenants"
	RouteAdminTenant        = AdminPrefix + "/tenants/{id}"
	RouteAdminAudit         = AdminPrefix + "/audit"

	// Push channel
	RoutePushWS        = PushPrefix + "/ws"
	RoutePushHandshake = PushPrefix + "/poll/handshake"
	RoutePushPoll      = PushPrefix + "/poll"

	// Fault injection
	RouteFault = "/dev/faults/{fault}"
)
