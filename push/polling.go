package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	PollHandshakePath = "/poll/handshake"
	PollPath          = "/poll"

	pollCloseTimeout = 2 * time.Second
)

// PollingDialer opens the channel over HTTP long-polling. The handshake is
// POST <baseURL>/poll/handshake with a Handshake body; the server replies
// with a connect frame carrying a session id. Frames are then read with
// GET <baseURL>/poll?sid=<id>, which returns a JSON array of frames once any
// are queued or the server's poll window ends.
type PollingDialer struct {
	HTTPClient *http.Client
}

func (d *PollingDialer) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d *PollingDialer) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	body, err := json.Marshal(Handshake{Auth: HandshakeAuth{Token: token}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(baseURL, PollHandshakePath), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling handshake: %w", err)
	}
	defer resp.Body.Close()

	var frame Frame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return nil, fmt.Errorf("%w: polling handshake returned %d", ErrHandshakeFailed, resp.StatusCode)
	}
	if err := expectConnect(frame); err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(frame.Data, &session); err != nil || session.ID == "" {
		return nil, fmt.Errorf("%w: connect frame has no session id", ErrHandshakeFailed)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	return &pollConn{
		client:  d.client(),
		pollURL: joinURL(baseURL, PollPath) + "?sid=" + url.QueryEscape(session.ID),
		ctx:     pollCtx,
		cancel:  cancel,
		stop:    stop,
	}, nil
}

type pollConn struct {
	client  *http.Client
	pollURL string

	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool

	mu      sync.Mutex
	pending []Frame

	closeOnce sync.Once
}

func (c *pollConn) ReadFrame(ctx context.Context) (Frame, error) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			f := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			return f, nil
		}
		c.mu.Unlock()

		frames, err := c.poll(ctx)
		if err != nil {
			return Frame{}, err
		}
		c.mu.Lock()
		c.pending = append(c.pending, frames...)
		c.mu.Unlock()
	}
}

func (c *pollConn) poll(ctx context.Context) ([]Frame, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(c.ctx, cancel)()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.pollURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: poll returned %d", ErrChannelClosed, resp.StatusCode)
	}
	var frames []Frame
	if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return frames, nil
}

// Close ends the poll session on the server, best effort.
func (c *pollConn) Close() error {
	c.closeOnce.Do(func() {
		c.stop()
		c.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), pollCloseTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.pollURL, nil)
		if err != nil {
			return
		}
		if resp, err := c.client.Do(req); err == nil {
			resp.Body.Close()
		}
	})
	return nil
}
