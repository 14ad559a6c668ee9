package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// EventTaskUpdate is the only event type the hub currently recognizes. It
// covers status, order, and comment changes alike; the payload carries the
// detail.
const EventTaskUpdate = "task_update"

const (
	// defaultSendBuffer is the per-session outgoing message buffer depth.
	defaultSendBuffer = 16

	// defaultInboundRate and defaultInboundBurst bound how fast one client
	// may publish events into its room.
	defaultInboundRate  = 20.0
	defaultInboundBurst = 40
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the JSON envelope pushed to clients on every broadcast.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// envelope is the inbound frame header. Remaining fields pass through to the
// room untouched.
type envelope struct {
	Type string `json:"type"`
}

// Options tune per-session buffering and inbound rate limiting.
// Zero values select defaults.
type Options struct {
	// SendBuffer is the per-session outgoing buffer depth. A session whose
	// buffer fills up is disconnected rather than allowed to block the room.
	SendBuffer int

	// InboundRate is the sustained number of inbound events per second one
	// session may publish; InboundBurst is the burst allowance. A
	// non-positive rate disables limiting.
	InboundRate  float64
	InboundBurst int
}

// Hub manages project rooms and fans task change events out to their members.
// Events arrive either from a connected client (readPump) or from the
// mutation bridge (Publish).
type Hub struct {
	reg  *registry
	opts Options
}

// New creates a Hub. Zero opts fields are filled with defaults.
func New(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = defaultInboundBurst
	}
	return &Hub{
		reg:  newRegistry(),
		opts: opts,
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.reg.closeAll()
}

// ServeHTTP upgrades the HTTP connection to WebSocket, joins the project room
// named by the request path (/ws/tasks/{project_id}), and serves the session.
// Blocks until the connection closes; the session leaves its room
// unconditionally on the way out.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := roomKeyFromPath(r.URL.Path)
	if key == "" {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	s := &Session{
		id:      uuid.NewString(),
		room:    key,
		conn:    conn,
		send:    make(chan []byte, h.opts.SendBuffer),
		limiter: newLimiter(h.opts),
		hub:     h,
	}
	h.reg.join(key, s)
	defer h.drop(s)

	slog.Debug("ws: session joined", "conn", s.id, "room", key)

	go s.writePump()
	s.readPump() // blocks until connection closes
}

// Publish fans payload out to every member of the room, wrapped in the
// task_update envelope. It is the entry point used by the mutation bridge;
// there is no sender to exclude. Returns the number of members notified.
func (h *Hub) Publish(roomKey string, payload []byte) int {
	return h.broadcast(roomKey, payload, nil)
}

// Count returns the number of currently connected sessions.
func (h *Hub) Count() int {
	return h.reg.count()
}

// RoomCount returns the number of rooms with at least one session.
func (h *Hub) RoomCount() int {
	return h.reg.roomCount()
}

// --- internal ---------------------------------------------------------------

// broadcast delivers payload to every member of the room except sender.
// Per-member failures disconnect that member only; the rest still receive the
// event. Returns the number of members notified.
func (h *Hub) broadcast(roomKey string, payload json.RawMessage, sender *Session) int {
	rm := h.reg.lookup(roomKey)
	if rm == nil {
		return 0
	}

	data, err := json.Marshal(Event{Type: EventTaskUpdate, Data: payload})
	if err != nil {
		slog.Error("ws: encode broadcast", "room", roomKey, "err", err)
		return 0
	}

	// Serialize broadcasts per room so every member observes publish order.
	rm.dispatch.Lock()
	defer rm.dispatch.Unlock()

	notified, failed := h.reg.push(rm, data, sender)
	for _, s := range failed {
		// Member's outgoing buffer is full — disconnect it rather than let it
		// stall or reorder delivery for the rest of the room.
		slog.Warn("ws: send buffer full — dropping session",
			"conn", s.id, "room", roomKey)
		h.dropFrom(roomKey, s)
	}
	return notified
}

// drop removes s from its room and closes its send channel exactly once.
func (h *Hub) drop(s *Session) {
	h.dropFrom(s.room, s)
}

// dropFrom removes s from the room named by roomKey. Broadcast uses the key
// it actually dispatched under rather than the session's own field, so a
// failed member is always removed from the room it failed in. Safe to call
// from multiple paths; only the caller that actually removes the session
// closes the channel.
func (h *Hub) dropFrom(roomKey string, s *Session) {
	if h.reg.leave(roomKey, s) {
		close(s.send)
		slog.Debug("ws: session left", "conn", s.id, "room", roomKey)
	}
}

func newLimiter(opts Options) *rate.Limiter {
	if opts.InboundRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(opts.InboundRate), opts.InboundBurst)
}

// roomKeyFromPath extracts the project key from /ws/tasks/{project_id}.
// Returns "" for paths that do not name exactly one project.
func roomKeyFromPath(path string) string {
	key := strings.TrimPrefix(path, "/ws/tasks/")
	if key == path {
		return ""
	}
	key = strings.TrimSuffix(key, "/")
	if key == "" || strings.Contains(key, "/") {
		return ""
	}
	return key
}
