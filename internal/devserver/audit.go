package devserver

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-workforce-client/admin"
)

const maxAuditEvents = 500

type auditLog struct {
	mu     sync.Mutex
	events []admin.AuditEvent
}

func newAuditLog() *auditLog {
	return &auditLog{}
}

func (a *auditLog) record(actor, action, resource string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, admin.AuditEvent{
		ID:       uuid.New().String(),
		Actor:    actor,
		Action:   action,
		Resource: resource,
		At:       NowTimeFunc().UTC(),
	})
	if len(a.events) > maxAuditEvents {
		a.events = a.events[len(a.events)-maxAuditEvents:]
	}
}

// list returns events newest first.
func (a *auditLog) list() []admin.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := slices.Clone(a.events)
	slices.Reverse(out)
	return out
}
