package push

import "sync"

// Status is the push channel connection state.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Lease is one observer's view of the connection status. Its channel holds
// only the latest status, so a slow reader skips intermediate states but
// never blocks the client.
type Lease struct {
	ch       chan Status
	release  func()
	closeOne sync.Once
}

// C delivers the current status on subscription and every change after it.
// It is closed when the lease is closed.
func (l *Lease) C() <-chan Status {
	return l.ch
}

// Close releases the lease. It is safe to call more than once.
func (l *Lease) Close() {
	l.closeOne.Do(l.release)
}

// statusHub is written only by the push client and read through leases.
type statusHub struct {
	mu      sync.Mutex
	current Status
	leases  map[*Lease]struct{}
}

func newStatusHub() *statusHub {
	return &statusHub{leases: make(map[*Lease]struct{})}
}

func (h *statusHub) get() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// set publishes s and reports whether it changed.
func (h *statusHub) set(s Status) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == s {
		return false
	}
	h.current = s
	for l := range h.leases {
		offer(l.ch, s)
	}
	return true
}

func (h *statusHub) subscribe() *Lease {
	l := &Lease{ch: make(chan Status, 1)}
	l.release = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.leases, l)
		close(l.ch)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.leases[l] = struct{}{}
	l.ch <- h.current
	return l
}

func (h *statusHub) closeAll() {
	h.mu.Lock()
	leases := make([]*Lease, 0, len(h.leases))
	for l := range h.leases {
		leases = append(leases, l)
	}
	h.mu.Unlock()
	for _, l := range leases {
		l.Close()
	}
}

// offer replaces any unread value in ch with s. Callers hold the hub lock,
// so there is a single sender per channel.
func offer(ch chan Status, s Status) {
	select {
	case <-ch:
	default:
	}
	ch <- s
}
