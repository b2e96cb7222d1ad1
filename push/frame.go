package push

import (
	"encoding/json"
	"fmt"
)

// Event names carried in Frame.Event.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventConnectError     = "connect_error"
	EventReconnectAttempt = "reconnect_attempt"
	EventDataChanged      = "data:changed"
	EventNotification     = "notification:new"
)

// Frame is one message on the push channel: {"event": name, "data": ...}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes data as the payload of an event frame.
func NewFrame(event string, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// DataChanged tells the client that a server-side mutation touched resource.
type DataChanged struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Notification is a user-facing notice with no cache effect.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ConnectError is the payload of a connect_error frame.
type ConnectError struct {
	Message string `json:"message"`
}

// Handshake is the first message a client sends: {"auth": {"token": ...}}.
type Handshake struct {
	Auth HandshakeAuth `json:"auth"`
}

type HandshakeAuth struct {
	Token string `json:"token"`
}

// Session is the payload of the connect frame.
type Session struct {
	ID string `json:"sid"`
}

// Handler receives inbound domain events. Calls are made from the client's
// read goroutine, one at a time, and must not block.
type Handler interface {
	HandleDataChanged(DataChanged)
	HandleNotification(Notification)
}
