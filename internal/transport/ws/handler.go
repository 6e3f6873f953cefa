package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"typeduel/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Arena is the matchmaking core driven by socket events
type Arena interface {
	JoinQueue(connID string, identity *model.Identity)
	Progress(connID string, msg model.ProgressMessage)
	Finish(connID string, msg model.FinishMessage)
	Disconnect(connID string)
}

// Authenticator resolves the upgrade request to an identity. A nil identity
// with a nil error means the request carried no credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*model.Identity, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub      *Hub
	auth     Authenticator
	arena    Arena
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// readers counts read pumps whose disconnect has not reached the arena yet
	readers sync.WaitGroup
}

// NewHandler creates a new WebSocket handler. An empty allowedOrigins
// accepts every origin.
func NewHandler(hub *Hub, auth Authenticator, arena Arena, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:   hub,
		auth:  auth,
		arena: arena,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowedOrigins) == 0 || origin == "" {
					return true
				}
				return slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// ServeWS handles GET /v1/ws. Sockets without valid credentials are still
// accepted; their queue:join is answered with queue:error.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Authenticate(r.Context(), r)
	if err != nil {
		h.logger.Info("ws_auth_rejected", slog.Any("err", err))
		identity = nil
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws_upgrade_failed", slog.Any("err", err))
		return
	}

	conn := &Connection{
		ID:       uuid.NewString(),
		Identity: identity,
		Send:     make(chan []byte, 256),
		Hub:      h.hub,
	}
	h.hub.Register(conn)

	h.readers.Add(1)
	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

// Wait blocks until every read pump has exited and reported its disconnect.
// Closing the hub ends all pumps, so the arena forfeits it triggers are
// scheduled before Wait returns.
func (h *Handler) Wait() {
	h.readers.Wait()
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.arena.Disconnect(conn.ID)
		h.hub.Unregister(conn)
		wsConn.Close()
		h.readers.Done()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("ws_read_failed", slog.String("conn", conn.ID), slog.Any("err", err))
			}
			return
		}
		h.dispatch(conn, data)
	}
}

// dispatch routes one client frame to the arena. Malformed frames are dropped.
func (h *Handler) dispatch(conn *Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debug("ws_bad_frame", slog.String("conn", conn.ID), slog.Any("err", err))
		return
	}

	switch msg.Type {
	case model.MsgQueueJoin:
		h.arena.JoinQueue(conn.ID, conn.Identity)

	case model.MsgMatchProgress:
		var p model.ProgressMessage
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.RoomID == "" {
			h.logger.Debug("ws_bad_payload", slog.String("conn", conn.ID), slog.String("type", msg.Type))
			return
		}
		h.arena.Progress(conn.ID, p)

	case model.MsgMatchFinish:
		var f model.FinishMessage
		if err := json.Unmarshal(msg.Payload, &f); err != nil || f.RoomID == "" {
			h.logger.Debug("ws_bad_payload", slog.String("conn", conn.ID), slog.String("type", msg.Type))
			return
		}
		h.arena.Finish(conn.ID, f)

	default:
		h.logger.Debug("ws_unknown_type", slog.String("conn", conn.ID), slog.String("type", msg.Type))
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
