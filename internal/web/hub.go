package web

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"presstalk/internal/view"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxCommandSize = 4096
	sendBuffer     = 16
)

// Command is a widget input sent over the websocket.
type Command struct {
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
}

const (
	CommandPress          = "press"
	CommandRelease        = "release"
	CommandLeave          = "leave"
	CommandPlaybackEnded  = "playback_ended"
	CommandPlaybackFailed = "playback_failed"
)

// Hub fans snapshots out to every connected widget.
type Hub struct {
	log *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	onCount func(int)
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{
		log:     logger,
		clients: make(map[*client]struct{}),
	}
}

// OnClientCount registers a callback for connection count changes.
func (h *Hub) OnClientCount(fn func(int)) {
	h.mu.Lock()
	h.onCount = fn
	h.mu.Unlock()
}

// Broadcast queues snap for every client. Slow clients drop messages rather
// than block the session events that produce them.
func (h *Hub) Broadcast(snap view.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.log.Error("failed to encode view snapshot", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = payload
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("dropping snapshot for slow websocket client", "remote", c.remote)
		}
	}
}

// Clients returns the number of connected widgets.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client, initial []byte) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		initial = h.last
	}
	c.send <- initial
	count, onCount := len(h.clients), h.onCount
	h.mu.Unlock()

	if onCount != nil {
		onCount(count)
	}
	h.log.Debug("websocket client connected", "remote", c.remote, "clients", count)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count, onCount := len(h.clients), h.onCount
	h.mu.Unlock()

	if onCount != nil {
		onCount(count)
	}
	h.log.Debug("websocket client disconnected", "remote", c.remote, "clients", count)
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: conn.RemoteAddr().String(),
	}
}

// writePump owns all writes to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump decodes commands until the connection fails.
func (c *client) readPump(logger *log.Logger, dispatch func(Command)) {
	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("websocket closed unexpectedly", "remote", c.remote, "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			logger.Warn("ignoring malformed widget command", "remote", c.remote, "error", err)
			continue
		}
		dispatch(cmd)
	}
}
