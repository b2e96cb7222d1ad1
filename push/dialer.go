package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
)

const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

var (
	ErrHandshakeFailed = wferrors.ErrHandshakeFailed
	ErrChannelClosed   = wferrors.ErrChannelClosed
	ErrUnknownTrans    = errors.New("unknown push transport")
)

// Conn is an established, authenticated push connection.
type Conn interface {
	// ReadFrame blocks until the next frame arrives, the connection drops,
	// or ctx is done.
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// Dialer opens a push connection to baseURL authenticated with token. A
// returned Conn has completed the handshake.
type Dialer interface {
	Dial(ctx context.Context, baseURL, token string) (Conn, error)
}

// FallbackDialer tries each dialer in order and returns the first
// connection established.
type FallbackDialer []Dialer

func (f FallbackDialer) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	var errs []error
	for _, d := range f {
		conn, err := d.Dial(ctx, baseURL, token)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no transports configured", ErrHandshakeFailed)
	}
	return nil, errors.Join(errs...)
}

// NewDialer builds a dialer for the named transports in preference order.
func NewDialer(transports []string, hc *http.Client) (Dialer, error) {
	var dialers FallbackDialer
	for _, name := range transports {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case TransportWebSocket:
			dialers = append(dialers, &WebSocketDialer{})
		case TransportPolling:
			dialers = append(dialers, &PollingDialer{HTTPClient: hc})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTrans, name)
		}
	}
	if len(dialers) == 1 {
		return dialers[0], nil
	}
	return dialers, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
