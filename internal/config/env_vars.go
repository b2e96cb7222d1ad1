package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.v.GetString("env"))
}

func (e EnvVars) GetOrigin() string {
	return strings.TrimRight(e.v.GetString("origin"), "/")
}

// GetAPIBaseURL returns the tenant API base URL. A relative value (the
// default) is resolved against the configured origin.
func (e EnvVars) GetAPIBaseURL() string {
	return e.resolve(e.v.GetString("api_base_url"))
}

func (e EnvVars) GetAdminAPIBaseURL() string {
	return e.resolve(e.v.GetString("admin_api_base_url"))
}

func (e EnvVars) GetPushURL() string {
	return e.resolve(e.v.GetString("push_url"))
}

func (e EnvVars) GetHTTPTimeout() time.Duration {
	return e.v.GetDuration("http_timeout")
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString("log_level")
}

func (e EnvVars) GetLogFormat() string {
	return e.v.GetString("log_format")
}

// GetSessionDB is the sqlite path for persisted sessions. Empty keeps
// sessions in memory only.
func (e EnvVars) GetSessionDB() string {
	return e.v.GetString("session_db")
}

func (e EnvVars) GetDevServerPort() string {
	port := e.v.GetString("devserver_port")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) resolve(raw string) string {
	raw = strings.TrimRight(raw, "/")
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return e.GetOrigin() + raw
}

type Auth struct {
	v *viper.Viper
}

var _ AuthConfig = Auth{}

func (Auth) GetTenantEndpoints() Endpoints {
	return Endpoints{
		Login:   "/auth/login",
		Refresh: "/auth/refresh",
		Logout:  "/auth/logout",
	}
}

func (Auth) GetAdminEndpoints() Endpoints {
	return Endpoints{
		Login:   "/admin/auth/login",
		Refresh: "/admin/auth/refresh",
		Logout:  "/admin/auth/logout",
	}
}

type Cache struct {
	v *viper.Viper
}

var _ CacheConfig = Cache{}

func (c Cache) GetStaleTime() time.Duration {
	return c.v.GetDuration("cache_stale_time")
}

func (c Cache) GetGCTime() time.Duration {
	return c.v.GetDuration("cache_gc_time")
}

type Push struct {
	v *viper.Viper
}

var _ PushConfig = Push{}

func (p Push) GetPushMaxAttempts() int {
	return p.v.GetInt("push_max_attempts")
}

func (p Push) GetPushInitialDelay() time.Duration {
	return p.v.GetDuration("push_initial_delay")
}

func (p Push) GetPushMaxDelay() time.Duration {
	return p.v.GetDuration("push_max_delay")
}

// GetPushTransports returns the push transports in preference order.
func (p Push) GetPushTransports() []string {
	raw := p.v.GetString("push_transports")
	parts := strings.Split(raw, ",")
	transports := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			transports = append(transports, part)
		}
	}
	return transports
}
