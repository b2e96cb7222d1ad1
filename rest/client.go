// Package rest turns transport responses into typed values. JSON calls go
// through the envelope; raw calls return the body as is. Every failure comes
// back as an apierror.APIError or apierror.ConnectivityError.
package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-workforce-client/apierror"
	"github.com/jrsteele09/go-workforce-client/envelope"
	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/jrsteele09/go-workforce-client/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client issues envelope calls for one audience.
type Client struct {
	transport *transport.Client
	lenient   bool
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

type Option func(*Client)

// WithLenientEnvelope accepts bare {data} bodies that carry no success flag.
func WithLenientEnvelope() Option {
	return func(c *Client) {
		c.lenient = true
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(t *transport.Client, options ...Option) *Client {
	c := &Client{
		transport: t,
		logger:    log.Logger.With().Str("component", "rest").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) Transport() *transport.Client {
	return c.transport
}

// do sends req and returns a 2xx response or a classified error.
func (c *Client) do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	resp, err := c.transport.Do(ctx, req)
	if err == nil && !resp.OK() {
		err = apierror.FromResponse(resp.StatusCode, resp.Body)
	}
	if err != nil {
		c.observe(req, err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) observe(req *transport.Request, err error) {
	kind := apierror.KindOf(err)
	c.metrics.ObserveError(kind.String())
	ev := c.logger.Debug()
	if kind == apierror.KindConnectivity {
		ev = c.logger.Warn()
	}
	ev.Err(err).Str("method", req.Method).Str("path", req.Path).Msg("request failed")
}

func (c *Client) classified(req *transport.Request, err error) error {
	if err != nil {
		c.observe(req, err)
	}
	return err
}

// Get fetches path and unwraps the envelope data.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var zero T
	req := transport.NewRequest(http.MethodGet, path)
	req.Query = query
	resp, err := c.do(ctx, req)
	if err != nil {
		return zero, err
	}
	unwrap := envelope.Unwrap[T]
	if c.lenient {
		unwrap = envelope.UnwrapLenient[T]
	}
	v, err := unwrap(resp.StatusCode, resp.Body)
	return v, c.classified(req, err)
}

// List fetches one page of a paginated collection.
func List[T any](ctx context.Context, c *Client, path string, query url.Values) (envelope.Page[T], error) {
	req := transport.NewRequest(http.MethodGet, path)
	req.Query = query
	resp, err := c.do(ctx, req)
	if err != nil {
		return envelope.Page[T]{}, err
	}
	unwrap := envelope.UnwrapPage[T]
	if c.lenient {
		unwrap = envelope.UnwrapPageLenient[T]
	}
	page, err := unwrap(resp.StatusCode, resp.Body)
	return page, c.classified(req, err)
}

// Send issues a JSON write (POST, PUT, PATCH, DELETE) and unwraps the
// envelope data. body may be nil.
func Send[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T
	req, err := transport.NewJSONRequest(method, path, body)
	if err != nil {
		return zero, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return zero, err
	}
	unwrap := envelope.Unwrap[T]
	if c.lenient {
		unwrap = envelope.UnwrapLenient[T]
	}
	v, err := unwrap(resp.StatusCode, resp.Body)
	return v, c.classified(req, err)
}

// RawResponse is a body returned without envelope processing, such as a
// CSV export or a PDF.
type RawResponse struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Raw fetches path and returns the body untouched. Failures are still
// classified, including enveloped error bodies.
func (c *Client) Raw(ctx context.Context, method, path string, query url.Values) (*RawResponse, error) {
	req := transport.NewRequest(method, path)
	req.Query = query
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RawResponse{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filename(resp.Header.Get("Content-Disposition")),
		Body:        resp.Body,
	}, nil
}
