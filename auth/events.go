package auth

// Event is a session lifecycle change.
type Event int

const (
	// EventEstablished fires after a login or a restore from the store.
	EventEstablished Event = iota + 1
	// EventRefreshed fires after both tokens were replaced by a refresh.
	EventRefreshed
	// EventCleared fires after logout or an unrecoverable refresh failure.
	EventCleared
)

func (e Event) String() string {
	switch e {
	case EventEstablished:
		return "established"
	case EventRefreshed:
		return "refreshed"
	case EventCleared:
		return "cleared"
	}
	return "unknown"
}

// Subscribe registers fn for session events. Listeners run synchronously on
// the goroutine that changed the session and must not block. The returned
// func removes the listener.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) emit(e Event) {
	m.subsMu.RLock()
	listeners := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.subsMu.RUnlock()

	m.logger.Debug().Str("event", e.String()).Msg("session event")
	for _, fn := range listeners {
		fn(e)
	}
}
