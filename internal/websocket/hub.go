package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatpdf/internal/middleware"
	"chatpdf/internal/models"
)

const writeWait = 10 * time.Second

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Hub delivers status events to the browsers of a session. With Redis,
// events go through pub/sub so any instance holding the socket delivers them.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*conn
	cancelFuncs map[string]context.CancelFunc
	publisher   *redis.Client
	subscriber  *redis.Client
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

// NewHub returns a hub that delivers locally when publisher or subscriber
// is nil.
func NewHub(publisher, subscriber *redis.Client, frontendURL string, log *zap.Logger) *Hub {
	if publisher == nil || subscriber == nil {
		publisher, subscriber = nil, nil
	}
	h := &Hub{
		connections: make(map[string][]*conn),
		cancelFuncs: make(map[string]context.CancelFunc),
		publisher:   publisher,
		subscriber:  subscriber,
		log:         log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, frontendURL)
		},
	}
	return h
}

func checkOrigin(r *http.Request, frontendURL string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if frontendURL != "" && origin == frontendURL {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func channelName(sessionID string) string {
	return "session_updates:" + sessionID
}

// HandleWebSocket upgrades the request. It must run behind the session
// middleware.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{ws: ws}
	h.registerConnection(sess.ID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sess.ID, c)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// First connection of this session on this instance subscribes.
	if h.subscriber != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	h.log.Debug("websocket connected",
		zap.String("session_id", sessionID),
		zap.Int("connections", len(h.connections[sessionID])),
	)
}

func (h *Hub) unregisterConnection(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.ws.Close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	h.log.Debug("websocket disconnected", zap.String("session_id", sessionID))
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID string) {
	pubsub := h.subscriber.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID string, data []byte) {
	h.mu.RLock()
	conns := append([]*conn(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}

// Publish sends msg to every browser of the session. Delivery is best effort.
func (h *Hub) Publish(ctx context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if h.publisher == nil {
		h.broadcast(sessionID, data)
		return
	}

	if err := h.publisher.Publish(ctx, channelName(sessionID), data).Err(); err != nil {
		h.log.Warn("failed to publish status update", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// ConnectionCount returns the number of open sockets for a session.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

// Close drops every connection and subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conns := range h.connections {
		for _, c := range conns {
			c.ws.Close()
		}
		delete(h.connections, id)
	}
	for id, cancel := range h.cancelFuncs {
		cancel()
		delete(h.cancelFuncs, id)
	}
}
