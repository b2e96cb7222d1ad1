// Package push keeps a server push channel open while a session is
// established and dispatches its events. The connection status is
// observable through leases; reconnection after a drop follows a bounded
// exponential backoff.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var (
	ErrClosed           = errors.New("push client closed")
	ErrAttemptsExceeded = wferrors.ErrAttemptsExceeded
)

// Client owns one push connection. It is the only writer of the
// connection status.
//
// Every Connect, Reconnect and Disconnect starts a new generation. Dials,
// read loops and timers belonging to an older generation notice the change
// and stop without touching the state.
type Client struct {
	baseURL string
	tokens  oauth2.TokenSource
	dialer  Dialer
	handler Handler
	config  ReconnectConfig
	clock   Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics

	status *statusHub

	mu      sync.Mutex
	gen     uint64
	active  bool
	closed  bool
	attempt int
	conn    Conn
	timer   Timer
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

func WithHandler(h Handler) Option {
	return func(c *Client) {
		c.handler = h
	}
}

func WithReconnectConfig(cfg ReconnectConfig) Option {
	return func(c *Client) {
		c.config = cfg
	}
}

// WithClock replaces the wall clock that schedules reconnect attempts.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a disconnected client for the push endpoint at baseURL.
// tokens supplies the access token for each handshake.
func New(baseURL string, tokens oauth2.TokenSource, options ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		dialer:  FallbackDialer{&WebSocketDialer{}, &PollingDialer{}},
		config:  DefaultReconnectConfig(),
		clock:   RealClock(),
		logger:  log.Logger.With().Str("component", "push").Logger(),
		status:  newStatusHub(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	return c.status.get()
}

// Subscribe returns a lease on the connection status. The caller must
// Close it when done.
func (c *Client) Subscribe() *Lease {
	return c.status.subscribe()
}

// Connect opens the channel unless it is already open or opening. The
// reconnect attempt counter starts again from zero.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.active && c.status.get() != Disconnected {
		c.mu.Unlock()
		return nil
	}
	conn := c.stopLocked()
	c.startLocked()
	c.mu.Unlock()

	closeConn(conn)
	return nil
}

// Reconnect drops any open connection and dials again with a fresh token.
// It does nothing unless the client has been connected.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	conn := c.stopLocked()
	c.startLocked()
	c.mu.Unlock()

	closeConn(conn)
	return nil
}

// Disconnect closes the channel and cancels any scheduled reconnect. No
// further attempts are made until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.active = false
	conn := c.stopLocked()
	c.setStatus(Disconnected)
	c.mu.Unlock()

	closeConn(conn)
}

// Close disconnects, waits for the client's goroutines and releases every
// status lease.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.active = false
	conn := c.stopLocked()
	c.setStatus(Disconnected)
	c.mu.Unlock()

	closeConn(conn)
	c.wg.Wait()
	c.status.closeAll()
	return nil
}

// startLocked begins a new generation and dials in the background.
func (c *Client) startLocked() {
	c.gen++
	c.active = true
	c.attempt = 0
	c.dialLocked(c.gen)
}

// stopLocked ends the current generation and returns its connection, which
// the caller closes after releasing the lock.
func (c *Client) stopLocked() Conn {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	return conn
}

func (c *Client) dialLocked(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setStatus(Connecting)

	c.wg.Add(1)
	go c.run(ctx, gen)
}

// run dials, then reads frames until the connection fails or the
// generation ends.
func (c *Client) run(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	conn, err := c.dial(ctx)
	if err != nil {
		c.failed(gen, err)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		closeConn(conn)
		return
	}
	c.conn = conn
	c.attempt = 0
	c.setStatus(Connected)
	c.mu.Unlock()
	c.logger.Info().Msg("push channel connected")

	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			c.failed(gen, err)
			return
		}
		if frame.Event == EventDisconnect {
			c.failed(gen, ErrChannelClosed)
			return
		}
		c.dispatch(frame)
	}
}

func (c *Client) dial(ctx context.Context) (Conn, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	return c.dialer.Dial(ctx, c.baseURL, tok.AccessToken)
}

// failed records a lost connection or failed dial and schedules the next
// attempt, or gives up once MaxAttempts reconnects have been made.
func (c *Client) failed(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.setStatus(Disconnected)

	if c.attempt >= c.config.MaxAttempts {
		c.mu.Unlock()
		closeConn(conn)
		c.logger.Warn().Err(errors.Join(ErrAttemptsExceeded, cause)).Int("attempts", c.config.MaxAttempts).Msg("push channel gave up reconnecting")
		return
	}
	c.attempt++
	attempt := c.attempt
	delay := c.config.Delay(attempt)
	c.timer = c.clock.AfterFunc(delay, func() { c.retry(gen) })
	c.mu.Unlock()

	closeConn(conn)
	c.logger.Warn().Err(cause).Int("attempt", attempt).Dur("delay", delay).Msg("push channel lost, scheduling reconnect")
}

// retry runs when a reconnect timer fires.
func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		return
	}
	c.timer = nil
	c.metrics.ObserveReconnect()
	c.logger.Debug().Int("attempt", c.attempt).Msg(EventReconnectAttempt)
	c.dialLocked(gen)
}

func (c *Client) dispatch(frame Frame) {
	if c.handler == nil {
		return
	}
	switch frame.Event {
	case EventDataChanged:
		var ev DataChanged
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			c.logger.Debug().Err(err).Msg("malformed data:changed frame")
			return
		}
		c.handler.HandleDataChanged(ev)
	case EventNotification:
		var n Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.logger.Debug().Err(err).Msg("malformed notification frame")
			return
		}
		c.handler.HandleNotification(n)
	default:
		c.logger.Debug().Str("event", frame.Event).Msg("ignoring push frame")
	}
}

func (c *Client) setStatus(s Status) {
	if c.status.set(s) {
		c.metrics.SetPushStatus(int(s))
		c.logger.Debug().Str("status", s.String()).Msg("push status")
	}
}

func closeConn(conn Conn) {
	if conn != nil {
		_ = conn.Close()
	}
}
