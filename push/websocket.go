package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	WebSocketPath           = "/ws"
	defaultHandshakeTimeout = 10 * time.Second
)

// WebSocketDialer opens the channel over a websocket at <baseURL>/ws. After
// the upgrade the client sends a Handshake and waits for a connect frame.
type WebSocketDialer struct {
	Dialer           *websocket.Dialer
	Header           http.Header
	HandshakeTimeout time.Duration
}

func (d *WebSocketDialer) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	target := toWebSocketURL(joinURL(baseURL, WebSocketPath))
	ws, resp, err := dialer.DialContext(ctx, target, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket upgrade returned %d", ErrHandshakeFailed, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", target, err)
	}

	frame, err := handshake(ws, token, timeout)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if err := expectConnect(frame); err != nil {
		_ = ws.Close()
		return nil, err
	}

	c := &wsConn{ws: ws}
	c.stop = context.AfterFunc(ctx, func() { _ = c.Close() })
	return c, nil
}

func handshake(ws *websocket.Conn, token string, timeout time.Duration) (Frame, error) {
	deadline := time.Now().Add(timeout)
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteJSON(Handshake{Auth: HandshakeAuth{Token: token}}); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	_ = ws.SetReadDeadline(deadline)
	var frame Frame
	if err := ws.ReadJSON(&frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	_ = ws.SetReadDeadline(time.Time{})
	_ = ws.SetWriteDeadline(time.Time{})
	return frame, nil
}

// expectConnect checks the server's reply to a handshake.
func expectConnect(frame Frame) error {
	switch frame.Event {
	case EventConnect:
		return nil
	case EventConnectError:
		var ce ConnectError
		_ = json.Unmarshal(frame.Data, &ce)
		return fmt.Errorf("%w: %s", ErrHandshakeFailed, ce.Message)
	default:
		return fmt.Errorf("%w: unexpected %q frame", ErrHandshakeFailed, frame.Event)
	}
}

func toWebSocketURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

type wsConn struct {
	ws        *websocket.Conn
	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	var frame Frame
	if err := c.ws.ReadJSON(&frame); err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return frame, nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		if c.stop != nil {
			c.stop()
		}
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
