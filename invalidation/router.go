// Package invalidation turns push events into cache invalidations and
// forwards user-facing notifications.
package invalidation

import (
	"github.com/jrsteele09/go-workforce-client/admin"
	"github.com/jrsteele09/go-workforce-client/cache"
	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/jrsteele09/go-workforce-client/push"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Invalidator marks cached entries under a key prefix as stale.
type Invalidator interface {
	Invalidate(prefix cache.Key) int
}

// Notifier shows a transient notice. It must not block.
type Notifier interface {
	Notify(push.Notification)
}

// NotifierFunc adapts a func to Notifier.
type NotifierFunc func(push.Notification)

func (f NotifierFunc) Notify(n push.Notification) {
	f(n)
}

// Router is a push.Handler.
type Router struct {
	cache         Invalidator
	systemMetrics bool
	notifier      Notifier
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

var _ push.Handler = (*Router)(nil)

type Option func(*Router)

// WithSystemMetrics makes every data change also invalidate the system
// metrics key. Operator clients use it since their dashboards aggregate
// over all tenants.
func WithSystemMetrics() Option {
	return func(r *Router) {
		r.systemMetrics = true
	}
}

func WithNotifier(n Notifier) Option {
	return func(r *Router) {
		r.notifier = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

func NewRouter(c Invalidator, options ...Option) *Router {
	r := &Router{
		cache:  c,
		logger: log.Logger.With().Str("component", "invalidation").Logger(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// HandleDataChanged marks the keys mapped from ev.Resource as stale. The
// action does not matter. Unknown resources are ignored.
func (r *Router) HandleDataChanged(ev push.DataChanged) {
	res, known := ParseResource(ev.Resource)
	if known {
		n := 0
		for _, key := range table[res] {
			n += r.cache.Invalidate(key)
		}
		r.metrics.ObserveInvalidation(string(res), n)
		r.logger.Debug().Str("resource", ev.Resource).Str("action", ev.Action).Int("entries", n).Msg("invalidated")
	} else {
		r.logger.Debug().Str("resource", ev.Resource).Msg("ignoring change to unknown resource")
	}

	if r.systemMetrics {
		r.cache.Invalidate(admin.KeySystemMetrics)
	}
}

// HandleNotification passes n to the notifier. There is no cache effect
// and no acknowledgement.
func (r *Router) HandleNotification(n push.Notification) {
	if r.notifier == nil {
		r.logger.Debug().Str("title", n.Title).Msg("notification dropped, no notifier")
		return
	}
	r.notifier.Notify(n)
}
