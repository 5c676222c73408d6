package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The endpoint is token-authenticated, origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHub fans notification payloads out to each user's open websocket
// connections. Implements service.Pusher. Delivery is best-effort: a slow
// connection gets dropped rather than blocking the fan-out.
type LiveHub struct {
	mu      sync.RWMutex
	clients map[string]map[*liveClient]struct{}
	logger  *zap.Logger
}

func NewLiveHub(logger *zap.Logger) *LiveHub {
	return &LiveHub{clients: make(map[string]map[*liveClient]struct{}), logger: logger}
}

type liveClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

func (h *LiveHub) register(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*liveClient]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func (h *LiveHub) unregister(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
}

// Push delivers payload to every open connection of userID.
func (h *LiveHub) Push(userID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("Encoding live payload failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			// Slow consumer, skip. The write pump will tear it down on ping
			// timeout if it is truly gone.
		}
	}
}

// ServeLive upgrades the request and runs the connection pumps. The caller
// must have authenticated the request; the user id comes from the context.
func (h *LiveHub) ServeLive(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &liveClient{userID: userID, conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound frames; the feed is one-way. Exits on any read
// error, which also covers pong timeouts.
func (h *LiveHub) readPump(c *liveClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writePump(c *liveClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
