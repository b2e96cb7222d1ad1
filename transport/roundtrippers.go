package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrsteele09/go-workforce-client/transport"

// loggingRoundTripper logs each exchange. Failures to reach the server are
// logged at warn: an outage is not an application bug.
type loggingRoundTripper struct {
	next    http.RoundTripper
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.metrics.ObserveRequest(req.Method, "error", duration)
		t.logger.Warn().Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("duration", duration).
			Msg("request failed to reach server")
		return resp, err
	}

	t.metrics.ObserveRequest(req.Method, strconv.Itoa(resp.StatusCode), duration)

	var event *zerolog.Event
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		event = t.logger.Warn()
	case resp.StatusCode >= http.StatusBadRequest:
		event = t.logger.Info()
	default:
		event = t.logger.Debug()
	}
	event.Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Dur("duration", duration).
		Msg("http request")
	return resp, nil
}

// tracingRoundTripper wraps each exchange in a client span.
type tracingRoundTripper struct {
	next   http.RoundTripper
	tracer trace.Tracer
}

func newTracingRoundTripper(next http.RoundTripper, tp trace.TracerProvider) *tracingRoundTripper {
	return &tracingRoundTripper{next: next, tracer: tp.Tracer(tracerName)}
}

func (t *tracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
			attribute.String("server.address", req.URL.Host),
			attribute.String("http.request_id", req.Header.Get(RequestIDHeader)),
		),
	)
	defer span.End()

	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return resp, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}
