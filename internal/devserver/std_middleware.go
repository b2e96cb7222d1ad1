package devserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// APIMiddleware is the chain for every envelope endpoint, followed by mw.
func (s *Server) APIMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chainedMiddleWare := []func(http.HandlerFunc) http.HandlerFunc{
		s.RequestIDMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.FaultMiddleware,
	}
	return append(chainedMiddleWare, mw...)
}

// RequestIDMiddleware echoes the caller's X-Request-ID, or assigns one.
func (s *Server) RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.logger.Debug().
			Str("request_id", r.Header.Get("X-Request-ID")).
			Dur("duration", time.Since(start)).
			Msgf("[%-19s] %s %s", colouredMethod(r.Method), r.URL.Path, colouredStatus(rec.status))
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Bytes("stack", debug.Stack()).Msg("handler panicked")
				writeFail(w, http.StatusInternalServerError, "Internal server error", "INTERNAL")
			}
		}()
		next(w, r)
	}
}

// FaultMiddleware fails the request when an injected failure matches its
// path.
func (s *Server) FaultMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := s.faults.take(r.URL.Path)
		if !ok {
			next(w, r)
			return
		}
		switch kind {
		case FailureGatewayPage:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html><head><title>502 Bad Gateway</title></head><body><h1>502 Bad Gateway</h1></body></html>"))
		case FailureEnvelope:
			writeFail(w, http.StatusInternalServerError, "Injected server failure", "INJECTED")
		case FailureUnauthorized:
			writeFail(w, http.StatusUnauthorized, "Token expired", "UNAUTHORIZED")
		}
	}
}
