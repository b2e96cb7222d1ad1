package devserver

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// FailureKind is the shape of an injected failure.
type FailureKind int

const (
	// FailureGatewayPage is a 502 with an HTML body, as a proxy in front of
	// an unreachable backend returns.
	FailureGatewayPage FailureKind = iota + 1
	// FailureEnvelope is a 500 carrying a well-formed error envelope.
	FailureEnvelope
	// FailureUnauthorized is a 401 regardless of the token presented.
	FailureUnauthorized
)

type failure struct {
	prefix    string
	kind      FailureKind
	remaining int
}

// Faults holds the failures the server will inject. The zero value injects
// nothing.
type Faults struct {
	mu          sync.Mutex
	failRefresh bool
	failures    []failure
}

// FailRefresh makes every refresh exchange fail with 401 while on.
func (f *Faults) FailRefresh(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRefresh = on
}

func (f *Faults) refreshFails() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failRefresh
}

// FailNext fails the next n requests whose path starts with prefix.
func (f *Faults) FailNext(prefix string, kind FailureKind, n int) {
	if n <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{prefix: prefix, kind: kind, remaining: n})
}

// Reset clears every injected failure.
func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRefresh = false
	f.failures = nil
}

func (f *Faults) take(path string) (FailureKind, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.failures {
		fl := &f.failures[i]
		if !strings.HasPrefix(path, fl.prefix) {
			continue
		}
		kind := fl.kind
		fl.remaining--
		if fl.remaining == 0 {
			f.failures = append(f.failures[:i], f.failures[i+1:]...)
		}
		return kind, true
	}
	return 0, false
}

// issuedTokens remembers live access token IDs so they can be expired on
// demand.
type issuedTokens struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func newIssuedTokens() *issuedTokens {
	return &issuedTokens{ids: make(map[string]time.Time)}
}

func (t *issuedTokens) add(jti string, exp time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids[jti] = exp
}

// drain returns and forgets every recorded token that has not expired.
func (t *issuedTokens) drain() map[string]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := NowTimeFunc()
	live := make(map[string]time.Time, len(t.ids))
	for jti, exp := range t.ids {
		if exp.After(now) {
			live[jti] = exp
		}
	}
	t.ids = make(map[string]time.Time)
	return live
}

// ExpireAccessTokens revokes every access token issued so far, so the next
// request of every session gets a 401. Refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() int {
	live := s.issued.drain()
	for jti, exp := range live {
		s.revoked.Add(jti, exp)
	}
	s.revoked.Cleanup()
	s.logger.Info().Int("tokens", len(live)).Msg("access tokens expired")
	return len(live)
}

// PurgeSessions revokes every refresh token and access token.
func (s *Server) PurgeSessions() (int, error) {
	s.ExpireAccessTokens()
	return s.refresh.RevokeAll()
}

// DropPushConnections disconnects every push subscriber.
func (s *Server) DropPushConnections() int {
	return s.hub.DropAll()
}

// FaultHandler drives fault injection over HTTP for cmd/devserver.
//
//	POST   /dev/faults/expire-tokens
//	POST   /dev/faults/purge-sessions
//	POST   /dev/faults/fail-refresh     DELETE clears it
//	POST   /dev/faults/gateway?path=/api/users&count=2
//	POST   /dev/faults/server-error?path=/api/users&count=1
//	POST   /dev/faults/drop-push
//	DELETE /dev/faults/all
func (s *Server) FaultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fault := r.PathValue("fault")
		count := max(queryInt(r, "count"), 1)
		path := r.URL.Query().Get("path")

		if r.Method == http.MethodDelete {
			switch fault {
			case "fail-refresh":
				s.faults.FailRefresh(false)
			case "all":
				s.faults.Reset()
			default:
				writeFail(w, http.StatusNotFound, "Unknown fault "+fault, "NOT_FOUND")
				return
			}
			writeOK(w, http.StatusOK, map[string]string{"cleared": fault})
			return
		}

		result := map[string]any{"fault": fault}
		switch fault {
		case "expire-tokens":
			result["tokens"] = s.ExpireAccessTokens()
		case "purge-sessions":
			n, err := s.PurgeSessions()
			if err != nil {
				writeError(w, err)
				return
			}
			result["sessions"] = n
		case "fail-refresh":
			s.faults.FailRefresh(true)
		case "gateway":
			s.faults.FailNext(path, FailureGatewayPage, count)
		case "server-error":
			s.faults.FailNext(path, FailureEnvelope, count)
		case "unauthorized":
			s.faults.FailNext(path, FailureUnauthorized, count)
		case "drop-push":
			result["connections"] = s.DropPushConnections()
		default:
			writeFail(w, http.StatusNotFound, "Unknown fault "+fault, "NOT_FOUND")
			return
		}
		writeOK(w, http.StatusOK, result)
	}
}
