// Package livefeed broadcasts captured chunks to websocket clients while a capture runs.
//
// Every binary message holds one or more encoded frames in the chunk log format. A client
// that connects late first receives everything captured so far in a single message.
package livefeed

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chunklog/pkg/outputlog"
)

const (
	// clientBuffer is the number of messages queued per client before it is
	// considered too slow and disconnected.
	clientBuffer = 256
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host := r.Host
		for _, expected := range []string{"http://" + host, "https://" + host} {
			if origin == expected {
				return true
			}
		}
		slog.Warn("Rejected WebSocket connection from unauthorized origin", "origin", origin, "host", host)
		return false
	},
}

type client struct {
	id   string
	send chan []byte
}

// Hub is an outputlog.Sink fanning chunks out to connected clients. It also serves the
// websocket endpoint.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
	history []byte
	closed  bool
}

// NewHub creates a hub. A nil logger means slog.Default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// WriteChunk records c and queues it for every client. It never blocks on a client.
func (h *Hub) WriteChunk(c outputlog.Chunk) error {
	frame := outputlog.FormatChunk(c)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	h.history = append(h.history, frame...)
	for id, cl := range h.clients {
		select {
		case cl.send <- frame:
		default:
			h.logger.Warn("Live feed client too slow, disconnecting", "clientID", id)
			delete(h.clients, id)
			close(cl.send)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Chunks written afterwards are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, cl := range h.clients {
		delete(h.clients, id)
		close(cl.send)
	}
}

// ServeHTTP upgrades the request to a websocket and streams chunks until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "capture finished", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade live feed connection", "error", err)
		return
	}

	cl := &client{id: uuid.New().String(), send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "capture finished"))
		_ = conn.Close()
		return
	}
	snapshot := append([]byte(nil), h.history...)
	h.clients[cl.id] = cl
	h.mu.Unlock()

	h.logger.Info("Live feed client connected", "clientID", cl.id, "remote", r.RemoteAddr)

	go h.writeLoop(conn, cl, snapshot)

	// Clients never send anything meaningful; reading detects when they leave.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Live feed read error", "clientID", cl.id, "error", err)
			}
			h.unregister(cl.id)
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, cl *client, snapshot []byte) {
	defer func() { _ = conn.Close() }()

	if len(snapshot) > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, snapshot); err != nil {
			h.unregister(cl.id)
			return
		}
	}

	for frame := range cl.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			h.unregister(cl.id)
			return
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture finished"),
		time.Now().Add(writeWait))
	h.logger.Info("Live feed client disconnected", "clientID", cl.id)
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(cl.send)
	}
}
