package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"typeduel/internal/model"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages live WebSocket connections keyed by connection id
type Hub struct {
	conns map[string]*Connection

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	closeOnce  sync.Once

	logger *slog.Logger
}

// Connection represents a WebSocket connection
type Connection struct {
	ID       string
	Identity *model.Identity // nil for anonymous sockets
	Send     chan []byte
	Hub      *Hub
}

// BroadcastMessage is a message addressed to one connection
type BroadcastMessage struct {
	ConnID  string
	Message *Message
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		conns:      make(map[string]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 1024),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn.ID] = conn
			h.mu.Unlock()
			h.logger.Debug("ws_connected", slog.String("conn", conn.ID), slog.Bool("authenticated", conn.Identity != nil))

		case conn := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.conns[conn.ID]; ok && existing == conn {
				delete(h.conns, conn.ID)
				close(conn.Send)
				h.logger.Debug("ws_disconnected", slog.String("conn", conn.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Message)
			if err != nil {
				h.logger.Error("ws_encode_failed", slog.String("type", msg.Message.Type), slog.Any("err", err))
				continue
			}
			h.mu.Lock()
			if conn, ok := h.conns[msg.ConnID]; ok {
				select {
				case conn.Send <- data:
				default:
					if !mustDeliver(msg.Message.Type) {
						// Drop message if buffer full
						h.logger.Warn("ws_send_dropped", slog.String("conn", msg.ConnID), slog.String("type", msg.Message.Type))
						break
					}
					// a connection that cannot take matchFound or the result is closed
					delete(h.conns, conn.ID)
					close(conn.Send)
					h.logger.Warn("ws_slow_consumer_closed", slog.String("conn", msg.ConnID), slog.String("type", msg.Message.Type))
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for id, conn := range h.conns {
				close(conn.Send)
				delete(h.conns, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// mustDeliver reports whether a frame type may never be dropped silently
func mustDeliver(msgType string) bool {
	return msgType == model.EventMatchFound || msgType == model.EventMatchResult
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// BroadcastToConn sends a message to a single connection (implements service.Broadcaster)
func (h *Hub) BroadcastToConn(connID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("ws_encode_failed", slog.String("type", msgType), slog.Any("err", err))
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{
		ConnID:  connID,
		Message: &Message{Type: msgType, Payload: data},
	}:
	case <-h.done:
	}
}

// Len returns the number of registered connections
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close stops the hub and closes every connection's send channel
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
