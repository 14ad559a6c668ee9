package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps the size of one inbound frame.
	maxMessageSize = 4096
)

// Session represents one live client connection subscribed to a single
// project room. The room key is fixed at connect time; a reconnecting client
// gets a fresh session with a new id.
type Session struct {
	id   string
	room string
	conn *websocket.Conn
	send chan []byte

	limiter *rate.Limiter
	hub     *Hub
}

// ID returns the session's unique connection id.
func (s *Session) ID() string { return s.id }

// Room returns the project room key the session is joined to.
func (s *Session) Room() string { return s.room }

// readPump reads frames from the connection until it closes. Recognized task
// update events are fanned out to the rest of the room; anything else —
// malformed JSON, unknown event types, messages over the rate limit — is
// dropped without closing the connection.
func (s *Session) readPump() {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if !s.limiter.Allow() {
			slog.Debug("ws: inbound rate limit exceeded — message dropped",
				"conn", s.id, "room", s.room)
			continue
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Debug("ws: malformed message dropped",
				"conn", s.id, "room", s.room, "err", err)
			continue
		}
		if env.Type != EventTaskUpdate {
			// Unknown event types are ignored so older servers tolerate
			// newer clients.
			continue
		}

		s.hub.broadcast(s.room, raw, s)
	}
}

// writePump drains the session's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per session.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or session removed).
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
