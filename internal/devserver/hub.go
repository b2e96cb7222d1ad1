package devserver

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-workforce-client/push"
	"github.com/jrsteele09/go-workforce-client/token/jwt"
	"github.com/rs/zerolog"
)

const subscriberBuffer = 64

// subscriber is one push connection, websocket or long-poll.
type subscriber struct {
	id     string
	tenant string
	admin  bool
	frames chan push.Frame
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// wants reports whether a change in tenantID concerns s.
func (s *subscriber) wants(tenantID string) bool {
	return s.admin || s.tenant == tenantID
}

// Hub fans data-change events out to push subscribers. Tenant subscribers
// see their own tenant's changes; administrative subscribers see all.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool
	logger zerolog.Logger
}

func newHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]*subscriber),
		logger: logger.With().Str("component", "push-hub").Logger(),
	}
}

func (h *Hub) register(claims *jwt.Claims) (*subscriber, bool) {
	sub := &subscriber{
		id:     uuid.New().String(),
		tenant: claims.Tenant,
		admin:  slices.Contains(claims.Audience, jwt.AudienceAdmin),
		frames: make(chan push.Frame, subscriberBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	h.subs[sub.id] = sub
	h.logger.Debug().Str("sid", sub.id).Str("tenant", sub.tenant).Bool("admin", sub.admin).Msg("subscriber connected")
	return sub, true
}

func (h *Hub) lookup(id string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	return sub, ok
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		sub.close()
		h.logger.Debug().Str("sid", id).Msg("subscriber gone")
	}
}

// Count reports the live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish sends a data:changed event for resource in tenantID.
func (h *Hub) Publish(tenantID, resource, action string) {
	frame, err := push.NewFrame(push.EventDataChanged, push.DataChanged{Resource: resource, Action: action})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode data change")
		return
	}
	h.broadcast(tenantID, frame)
}

// Notify sends a notification:new event to tenantID's subscribers.
func (h *Hub) Notify(tenantID string, n push.Notification) {
	frame, err := push.NewFrame(push.EventNotification, n)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode notification")
		return
	}
	h.broadcast(tenantID, frame)
}

// broadcast queues frame for every interested subscriber. A subscriber whose
// queue is full is disconnected rather than allowed to stall the others.
func (h *Hub) broadcast(tenantID string, frame push.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		if !sub.wants(tenantID) {
			continue
		}
		select {
		case sub.frames <- frame:
		default:
			h.logger.Warn().Str("sid", id).Msg("subscriber too slow, disconnecting")
			delete(h.subs, id)
			sub.close()
		}
	}
}

// DropAll disconnects every subscriber and returns how many there were.
func (h *Hub) DropAll() int {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
	if len(subs) > 0 {
		h.logger.Info().Int("subscribers", len(subs)).Msg("push connections dropped")
	}
	return len(subs)
}

// Close drops every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.DropAll()
}
