package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	AuthConfig
	CacheConfig
	PushConfig
	Validate() error
}

type EnvConfig interface {
	GetEnv() string
	GetOrigin() string
	GetAPIBaseURL() string
	GetAdminAPIBaseURL() string
	GetPushURL() string
	GetHTTPTimeout() time.Duration
	GetLogLevel() string
	GetLogFormat() string
	GetSessionDB() string
	GetDevServerPort() string
}

type AuthConfig interface {
	GetTenantEndpoints() Endpoints
	GetAdminEndpoints() Endpoints
}

type CacheConfig interface {
	GetStaleTime() time.Duration
	GetGCTime() time.Duration
}

type PushConfig interface {
	GetPushMaxAttempts() int
	GetPushInitialDelay() time.Duration
	GetPushMaxDelay() time.Duration
	GetPushTransports() []string
}

// Endpoints are the session endpoints of one audience, relative to its base URL.
type Endpoints struct {
	Login   string
	Refresh string
	Logout  string
}

type mainConfig struct {
	EnvVars
	Auth
	Cache
	Push
}

var _ Config = mainConfig{}

// New builds a Config from environment variables only.
func New() Config {
	c, _ := Load("")
	return c
}

// Load builds a Config from an optional YAML file overlaid with environment
// variables. API_BASE_URL overrides api_base_url, and so on.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return mainConfig{EnvVars{v}, Auth{v}, Cache{v}, Push{v}}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return mainConfig{EnvVars{v}, Auth{v}, Cache{v}, Push{v}}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "DEV")
	v.SetDefault("origin", "http://localhost:8080")
	v.SetDefault("api_base_url", "/api")
	v.SetDefault("admin_api_base_url", "/admin-api")
	v.SetDefault("push_url", "/push")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("session_db", "")
	v.SetDefault("devserver_port", "8080")

	v.SetDefault("cache_stale_time", 5*time.Minute)
	v.SetDefault("cache_gc_time", 10*time.Minute)

	v.SetDefault("push_max_attempts", 10)
	v.SetDefault("push_initial_delay", time.Second)
	v.SetDefault("push_max_delay", 30*time.Second)
	v.SetDefault("push_transports", "websocket,polling")
}

type settings struct {
	Origin          string        `validate:"required,url"`
	APIBaseURL      string        `validate:"required,url"`
	AdminAPIBaseURL string        `validate:"required,url"`
	PushURL         string        `validate:"required,url"`
	HTTPTimeout     time.Duration `validate:"gt=0"`
	LogLevel        string        `validate:"oneof=debug info warn warning error"`
	LogFormat       string        `validate:"oneof=console json"`
	StaleTime       time.Duration `validate:"gte=0"`
	GCTime          time.Duration `validate:"gtefield=StaleTime"`
	MaxAttempts     int           `validate:"min=0,max=100"`
	InitialDelay    time.Duration `validate:"gt=0"`
	MaxDelay        time.Duration `validate:"gtefield=InitialDelay"`
	Transports      []string      `validate:"min=1,dive,oneof=websocket polling"`
}

// Validate checks the resolved configuration values.
func (c mainConfig) Validate() error {
	s := settings{
		Origin:          c.GetOrigin(),
		APIBaseURL:      c.GetAPIBaseURL(),
		AdminAPIBaseURL: c.GetAdminAPIBaseURL(),
		PushURL:         c.GetPushURL(),
		HTTPTimeout:     c.GetHTTPTimeout(),
		LogLevel:        strings.ToLower(c.GetLogLevel()),
		LogFormat:       strings.ToLower(c.GetLogFormat()),
		StaleTime:       c.GetStaleTime(),
		GCTime:          c.GetGCTime(),
		MaxAttempts:     c.GetPushMaxAttempts(),
		InitialDelay:    c.GetPushInitialDelay(),
		MaxDelay:        c.GetPushMaxDelay(),
		Transports:      c.GetPushTransports(),
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(s); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", wferrors.ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", wferrors.ErrInvalidConfig, strings.Join(msgs, "; "))
}
