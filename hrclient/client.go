// Package hrclient assembles the session, transport, cache and push layers
// into one client. A Client holds two independent audiences, tenant and
// administrative, sharing a read cache. Each audience's push channel
// follows its session: it opens when the session is established, reopens
// with the new token after a refresh and closes when the session ends.
package hrclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-workforce-client/admin"
	"github.com/jrsteele09/go-workforce-client/auth"
	"github.com/jrsteele09/go-workforce-client/cache"
	"github.com/jrsteele09/go-workforce-client/internal/config"
	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/jrsteele09/go-workforce-client/invalidation"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
	"github.com/jrsteele09/go-workforce-client/push"
	"github.com/jrsteele09/go-workforce-client/rest"
	"github.com/jrsteele09/go-workforce-client/sessions"
	"github.com/jrsteele09/go-workforce-client/sessions/sqlitestore"
	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/jrsteele09/go-workforce-client/transport"
	"github.com/jrsteele09/go-workforce-client/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Session names. They key the persisted tokens in a session store.
const (
	AudienceTenant = "tenant"
	AudienceAdmin  = "admin"
)

// Audience is the stack of one session: its manager, the rest client
// authenticated by it and the push channel opened with its token.
type Audience struct {
	Auth   *auth.Manager
	REST   *rest.Client
	Push   *push.Client
	Router *invalidation.Router

	// keys are dropped from the cache when the session ends.
	keys        []cache.Key
	unsubscribe func()
}

type Client struct {
	cache   *cache.Cache
	tenant  *Audience
	admin   *Audience
	store   sessions.Store
	ownedDB *sqlitestore.Store

	Tenants *tenants.Remote
	Users   *users.Remote
	Admin   *admin.Remote

	httpClient        *http.Client
	registerer        prometheus.Registerer
	metrics           *metrics.Metrics
	tracerProvider    trace.TracerProvider
	notifier          invalidation.Notifier
	dialer            push.Dialer
	clock             push.Clock
	onUnauthenticated func(audience string)
	logger            zerolog.Logger
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRegisterer registers the client's Prometheus collectors with reg.
// Without it no metrics are recorded.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// WithSessionStore persists both sessions in store. When unset and the
// configuration names a SESSION_DB, a sqlite store is opened there.
func WithSessionStore(store sessions.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithNotifier receives notification:new events from either push channel.
func WithNotifier(n invalidation.Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithUnauthenticatedHandler is called with the audience name when a
// session is torn down after a failed refresh.
func WithUnauthenticatedHandler(fn func(audience string)) Option {
	return func(c *Client) {
		c.onUnauthenticated = fn
	}
}

// WithPushDialer replaces the dialer built from the configured transports.
func WithPushDialer(d push.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithPushClock replaces the clock that schedules push reconnects.
func WithPushClock(clock push.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New validates cfg and builds both audiences. Nothing is sent until a
// login or a restored session.
func New(cfg config.Config, options ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		logger: log.Logger.With().Str("component", "hrclient").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.GetHTTPTimeout()}
	}
	if c.registerer != nil {
		c.metrics = metrics.New(c.registerer)
	}
	if c.store == nil && cfg.GetSessionDB() != "" {
		db, err := sqlitestore.Open(cfg.GetSessionDB())
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		c.store, c.ownedDB = db, db
	}
	if c.dialer == nil {
		d, err := push.NewDialer(cfg.GetPushTransports(), c.httpClient)
		if err != nil {
			return nil, errors.Join(err, c.closeStore())
		}
		c.dialer = d
	}

	policy := cache.DefaultPolicy()
	policy.StaleTime = cfg.GetStaleTime()
	policy.GCTime = cfg.GetGCTime()
	c.cache = cache.New(cache.WithPolicy(policy), cache.WithMetrics(c.metrics))

	reconnect := push.ReconnectConfig{
		MaxAttempts:  cfg.GetPushMaxAttempts(),
		InitialDelay: cfg.GetPushInitialDelay(),
		MaxDelay:     cfg.GetPushMaxDelay(),
		Multiplier:   push.DefaultReconnectConfig().Multiplier,
	}

	c.tenant = c.newAudience(AudienceTenant, cfg.GetAPIBaseURL(), cfg.GetTenantEndpoints(), cfg.GetPushURL(), reconnect, tenantKeys(), false)
	c.admin = c.newAudience(AudienceAdmin, cfg.GetAdminAPIBaseURL(), cfg.GetAdminEndpoints(), cfg.GetPushURL(), reconnect, []cache.Key{admin.KeyAll}, true)

	c.Tenants = tenants.NewRemote(c.tenant.REST, c.cache)
	c.Users = users.NewRemote(c.tenant.REST, c.cache)
	c.Admin = admin.NewRemote(c.admin.REST, c.cache)
	return c, nil
}

func (c *Client) newAudience(name, baseURL string, endpoints config.Endpoints, pushURL string, reconnect push.ReconnectConfig, keys []cache.Key, privileged bool) *Audience {
	logger := c.logger.With().Str("audience", name).Logger()

	tr := transport.New(baseURL,
		transport.WithHTTPClient(c.httpClient),
		transport.WithMetrics(c.metrics),
		transport.WithTracerProvider(c.tracerProvider),
	)

	var sessionOpts []sessions.Option
	if c.store != nil {
		sessionOpts = append(sessionOpts, sessions.WithStore(c.store))
	}
	session := sessions.New(name, sessionOpts...)

	managerOpts := []auth.ManagerOption{
		auth.WithMetrics(c.metrics),
		auth.WithUnauthenticatedHandler(func() {
			if c.onUnauthenticated != nil {
				c.onUnauthenticated(name)
			}
		}),
	}
	restOpts := []rest.Option{rest.WithMetrics(c.metrics)}
	routerOpts := []invalidation.Option{invalidation.WithMetrics(c.metrics)}
	if c.notifier != nil {
		routerOpts = append(routerOpts, invalidation.WithNotifier(c.notifier))
	}
	if privileged {
		managerOpts = append(managerOpts, auth.WithLenientEnvelope())
		restOpts = append(restOpts, rest.WithLenientEnvelope())
		routerOpts = append(routerOpts, invalidation.WithSystemMetrics())
	}

	manager := auth.NewManager(session, endpoints, managerOpts...)
	manager.Install(tr)
	router := invalidation.NewRouter(c.cache, routerOpts...)

	pushOpts := []push.Option{
		push.WithDialer(c.dialer),
		push.WithHandler(router),
		push.WithReconnectConfig(reconnect),
		push.WithMetrics(c.metrics),
		push.WithLogger(logger.With().Str("component", "push").Logger()),
	}
	if c.clock != nil {
		pushOpts = append(pushOpts, push.WithClock(c.clock))
	}

	a := &Audience{
		Auth:   manager,
		REST:   rest.New(tr, restOpts...),
		Push:   push.New(pushURL, manager, pushOpts...),
		Router: router,
		keys:   keys,
	}
	a.unsubscribe = manager.Subscribe(c.follow(a, logger))
	return a
}

// follow returns the session listener that drives a's push channel.
func (c *Client) follow(a *Audience, logger zerolog.Logger) func(auth.Event) {
	return func(e auth.Event) {
		switch e {
		case auth.EventEstablished:
			if err := a.Push.Connect(); err != nil {
				logger.Warn().Err(err).Msg("push channel not opened")
			}
		case auth.EventRefreshed:
			if err := a.Push.Reconnect(); err != nil {
				logger.Warn().Err(err).Msg("push channel not reopened")
			}
		case auth.EventCleared:
			a.Push.Disconnect()
			n := 0
			for _, key := range a.keys {
				n += c.cache.RemovePrefix(key)
			}
			logger.Debug().Int("entries", n).Msg("session cached data dropped")
		}
	}
}

// tenantKeys are every prefix the tenant audience reads, leaving the
// administrative entries alone.
func tenantKeys() []cache.Key {
	keys := []cache.Key{tenants.KeyAll, users.KeyAll}
	for _, r := range invalidation.AllResources() {
		for _, key := range invalidation.KeysFor(r) {
			if !key.HasPrefix(admin.KeyAll) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func (c *Client) Tenant() *Audience {
	return c.tenant
}

func (c *Client) Administrator() *Audience {
	return c.admin
}

func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// Login signs in to the tenant audience.
func (c *Client) Login(ctx context.Context, email, password string) (*oauthmodel.Principal, error) {
	return c.tenant.Auth.Login(ctx, oauthmodel.LoginRequest{Email: email, Password: password})
}

// AdminLogin signs in to the administrative audience.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (*oauthmodel.Principal, error) {
	return c.admin.Auth.Login(ctx, oauthmodel.LoginRequest{Email: email, Password: password})
}

// Logout ends both sessions. The server calls are best effort; the local
// sessions are cleared either way.
func (c *Client) Logout(ctx context.Context) error {
	return errors.Join(c.tenant.Auth.Logout(ctx), c.admin.Auth.Logout(ctx))
}

// Restore re-establishes whichever sessions the store holds and reports
// the audiences that were restored.
func (c *Client) Restore() ([]string, error) {
	var restored []string
	for _, a := range []*Audience{c.tenant, c.admin} {
		ok, err := a.Auth.Restore()
		if err != nil {
			return restored, err
		}
		if ok {
			restored = append(restored, a.Auth.Audience())
		}
	}
	return restored, nil
}

// Focus tells the cache the application regained focus.
func (c *Client) Focus() int {
	return c.cache.Focus()
}

// Close stops both push channels and the cache and closes a session store
// the client opened itself. Sessions are left as they are.
func (c *Client) Close() error {
	var g errgroup.Group
	for _, a := range []*Audience{c.tenant, c.admin} {
		a.unsubscribe()
		g.Go(a.Push.Close)
	}
	err := g.Wait()
	c.cache.Close()
	return errors.Join(err, c.closeStore())
}

func (c *Client) closeStore() error {
	if c.ownedDB == nil {
		return nil
	}
	return c.ownedDB.Close()
}
