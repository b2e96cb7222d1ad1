package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-workforce-client/push"
	"github.com/jrsteele09/go-workforce-client/token/jwt"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func frameOf(event string, v any) push.Frame {
	f, _ := push.NewFrame(event, v)
	return f
}

// authenticate verifies a handshake token for either audience.
func (s *Server) authenticate(hs push.Handshake) (*jwt.Claims, error) {
	return s.issuer.Verify(hs.Auth.Token, "")
}

func (s *Server) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer ws.Close()

		_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
		var hs push.Handshake
		if err := ws.ReadJSON(&hs); err != nil {
			return
		}
		claims, err := s.authenticate(hs)
		if err != nil {
			_ = ws.WriteJSON(frameOf(push.EventConnectError, push.ConnectError{Message: "unauthorized"}))
			return
		}
		sub, ok := s.hub.register(claims)
		if !ok {
			_ = ws.WriteJSON(frameOf(push.EventConnectError, push.ConnectError{Message: "server shutting down"}))
			return
		}
		defer s.hub.unregister(sub.id)

		_ = ws.SetReadDeadline(time.Time{})
		if err := ws.WriteJSON(frameOf(push.EventConnect, push.Session{ID: sub.id})); err != nil {
			return
		}

		// The client never sends after the handshake; reading only notices
		// when it goes away.
		go func() {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					sub.close()
					return
				}
			}
		}()

		for {
			select {
			case f := <-sub.frames:
				_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := ws.WriteJSON(f); err != nil {
					return
				}
			case <-sub.done:
				deadline := time.Now().Add(writeTimeout)
				_ = ws.SetWriteDeadline(deadline)
				_ = ws.WriteJSON(frameOf(push.EventDisconnect, struct{}{}))
				_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
				return
			}
		}
	}
}

func (s *Server) PollHandshakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var hs push.Handshake
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&hs); err != nil {
			writeJSON(w, http.StatusBadRequest, frameOf(push.EventConnectError, push.ConnectError{Message: "malformed handshake"}))
			return
		}
		claims, err := s.authenticate(hs)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, frameOf(push.EventConnectError, push.ConnectError{Message: "unauthorized"}))
			return
		}
		sub, ok := s.hub.register(claims)
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, frameOf(push.EventConnectError, push.ConnectError{Message: "server shutting down"}))
			return
		}
		writeJSON(w, http.StatusOK, frameOf(push.EventConnect, push.Session{ID: sub.id}))
	}
}

// PollHandler holds the request until a frame is queued or the poll window
// ends, then returns everything queued as a JSON array.
func (s *Server) PollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := s.hub.lookup(r.URL.Query().Get("sid"))
		if !ok {
			writeFail(w, http.StatusNotFound, "Unknown push session", "NOT_FOUND")
			return
		}

		frames := []push.Frame{}
		timer := time.NewTimer(s.pollWait)
		defer timer.Stop()
		select {
		case f := <-sub.frames:
			frames = append(frames, f)
		case <-sub.done:
			s.hub.unregister(sub.id)
			writeFail(w, http.StatusGone, "Push session closed", "GONE")
			return
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	drain:
		for {
			select {
			case f := <-sub.frames:
				frames = append(frames, f)
			default:
				break drain
			}
		}
		writeJSON(w, http.StatusOK, frames)
	}
}

func (s *Server) PollCloseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.hub.unregister(r.URL.Query().Get("sid"))
		w.WriteHeader(http.StatusNoContent)
	}
}
