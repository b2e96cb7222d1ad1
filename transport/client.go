// Package transport is a thin HTTP executor with a fixed base URL, default
// headers, and pluggable request and response interceptors.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-workforce-client/apierror"
	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 30 * time.Second

	RequestIDHeader = "X-Request-ID"
)

// RequestInterceptor runs before a request is sent. Returning an error
// aborts the request.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor runs after a response is received. It may replace the
// response, for example by re-issuing the request through the client.
type ResponseInterceptor func(ctx context.Context, c *Client, resp *Response) (*Response, error)

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	headers    http.Header
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	tracer     trace.TracerProvider

	mu                   sync.RWMutex
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is still
// wrapped with logging and tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
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

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp
	}
}

func WithRequestInterceptor(i RequestInterceptor) Option {
	return func(c *Client) {
		c.requestInterceptors = append(c.requestInterceptors, i)
	}
}

func WithResponseInterceptor(i ResponseInterceptor) Option {
	return func(c *Client) {
		c.responseInterceptors = append(c.responseInterceptors, i)
	}
}

// New creates a client for baseURL. Requests default to JSON and carry a
// fresh X-Request-ID.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    http.Header{},
		logger:     log.Logger.With().Str("component", "transport").Logger(),
	}
	c.headers.Set("Accept", "application/json")

	for _, opt := range options {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var rt http.RoundTripper = &loggingRoundTripper{next: base, logger: c.logger, metrics: c.metrics}
	if c.tracer != nil {
		rt = newTracingRoundTripper(rt, c.tracer)
	}
	hc := *c.httpClient
	hc.Transport = rt
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.httpClient = &hc

	return c
}

// BaseURL returns the URL every request path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Use appends interceptors after construction. Session managers install
// themselves this way.
func (c *Client) Use(req RequestInterceptor, resp ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req != nil {
		c.requestInterceptors = append(c.requestInterceptors, req)
	}
	if resp != nil {
		c.responseInterceptors = append(c.responseInterceptors, resp)
	}
}

// Do sends req and returns the response with its body read. Any status is
// returned as a response; only a failure to get a response is an error, and
// that error is always an *apierror.ConnectivityError unless an interceptor
// returned something else.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Header == nil {
		req.Header = http.Header{}
	}
	for k, values := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = append([]string(nil), values...)
		}
	}
	if req.Header.Get(RequestIDHeader) == "" || req.Retried {
		req.Header.Set(RequestIDHeader, uuid.New().String())
	}

	c.mu.RLock()
	reqInterceptors := append([]RequestInterceptor(nil), c.requestInterceptors...)
	respInterceptors := append([]ResponseInterceptor(nil), c.responseInterceptors...)
	c.mu.RUnlock()

	for _, intercept := range reqInterceptors {
		if err := intercept(ctx, req); err != nil {
			return nil, err
		}
	}

	httpReq, err := req.httpRequest(ctx, c.baseURL)
	if err != nil {
		return nil, apierror.FromTransportError(err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apierror.FromTransportError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apierror.FromTransportError(err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Request:    req,
	}

	for _, intercept := range respInterceptors {
		resp, err = intercept(ctx, c, resp)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}
