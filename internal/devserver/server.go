// Package devserver is an in-process HR backend for development and
// end-to-end tests. It speaks the response envelope, the tenant and
// administrative session endpoints, the tenants and users resources and
// the push channel, and can inject the failures the client has to survive.
package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-workforce-client/tenants"
	tenantrepofakes "github.com/jrsteele09/go-workforce-client/tenants/repofakes"
	"github.com/jrsteele09/go-workforce-client/token"
	"github.com/jrsteele09/go-workforce-client/token/jwt"
	"github.com/jrsteele09/go-workforce-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-workforce-client/token/refresh/repofake"
	"github.com/jrsteele09/go-workforce-client/users"
	fakeuserrepo "github.com/jrsteele09/go-workforce-client/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultPollWait        = 25 * time.Second

	// DefaultPassword is the password of every seeded account.
	DefaultPassword = "Password123"
	// SystemAdminEmail signs in to the administrative audience.
	SystemAdminEmail = "root@workforce.test"

	issuerName = "workforce-devserver"
)

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	logger zerolog.Logger

	tenants tenants.Repo
	users   users.Repo

	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     *jwt.Issuer
	revoked    *token.InMemoryRevokedTokenCache
	refresh    *refresh.Manager
	issued     *issuedTokens

	hub      *Hub
	pollWait time.Duration
	faults   *Faults
	audit    *auditLog
	validate *validator.Validate
	seed     bool

	closeOnce sync.Once
}

type Option func(*Server)

// WithEnv sets the environment name. Routes are printed at startup in DEV.
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func WithTenantRepo(r tenants.Repo) Option {
	return func(s *Server) {
		s.tenants = r
	}
}

func WithUserRepo(r users.Repo) Option {
	return func(s *Server) {
		s.users = r
	}
}

// WithSigningSecret sets the HS256 secret for access tokens.
func WithSigningSecret(secret []byte) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

func WithAccessTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = d
	}
}

func WithRefreshTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = d
	}
}

// WithPollWait bounds how long a long-poll request is held open.
func WithPollWait(d time.Duration) Option {
	return func(s *Server) {
		s.pollWait = d
	}
}

// WithoutSeed starts with whatever the repos already hold.
func WithoutSeed() Option {
	return func(s *Server) {
		s.seed = false
	}
}

func New(options ...Option) (*Server, error) {
	s := &Server{
		env:        "DEV",
		mux:        http.NewServeMux(),
		logger:     log.Logger.With().Str("component", "devserver").Logger(),
		secret:     []byte("workforce-devserver-signing-secret"),
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		pollWait:   DefaultPollWait,
		revoked:    token.NewInMemoryRevokedTokenCache(),
		issued:     newIssuedTokens(),
		faults:     &Faults{},
		audit:      newAuditLog(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		seed:       true,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.tenants == nil {
		s.tenants = tenantrepofakes.NewFakeTenantRepo()
	}
	if s.users == nil {
		s.users = fakeuserrepo.NewFakeUserRepo()
	}
	s.issuer = jwt.NewIssuer(issuerName, s.secret, s.accessTTL, jwt.WithRevokedChecker(s.revoked))
	s.refresh = refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), s.refreshTTL)
	s.hub = newHub(s.logger)

	if s.seed {
		if err := s.InitialiseData(); err != nil {
			return nil, fmt.Errorf("[devserver New] failed to seed data: %w", err)
		}
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Faults returns the fault injection switches.
func (s *Server) Faults() *Faults {
	return s.faults
}

// Hub returns the push hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects every push subscriber.
func (s *Server) Close() {
	s.closeOnce.Do(s.hub.Close)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.logger.Debug().Msgf("[%-19s] %s", colouredMethod(method), path)
}
