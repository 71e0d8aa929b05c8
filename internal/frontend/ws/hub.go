// Package ws is the websocket push gateway: it authenticates connections,
// tracks per-room subscriptions, and fans battle events out to subscribers.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/gameserver"
)

// sendBuffer is the per-connection outbound queue length. A client whose
// queue is full is disconnected.
const sendBuffer = 64

// maxFrameBytes bounds a single client frame.
const maxFrameBytes = 4096

// TokenVerifier resolves a bearer token to an account id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// TokenExtractor pulls the bearer token from an upgrade request.
type TokenExtractor func(r *http.Request) string

// RoomAttacher subscribes a connection to a room under the room's lock.
type RoomAttacher interface {
	Attach(roomID string, attach func(initial []gameserver.Event)) error
}

// Hub tracks websocket clients and their room subscriptions. It implements
// gameserver.Broadcaster.
type Hub struct {
	upgrader websocket.Upgrader
	verifier TokenVerifier
	token    TokenExtractor
	rooms    RoomAttacher
	cfg      config.WebsocketConfig
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	subs    map[string]map[*client]struct{}
}

var _ gameserver.Broadcaster = (*Hub)(nil)

// NewHub creates a Hub.
//
// Precondition: verifier, token, rooms, and logger must be non-nil.
func NewHub(cfg config.WebsocketConfig, verifier TokenVerifier, token TokenExtractor, rooms RoomAttacher, logger *zap.Logger) *Hub {
	h := &Hub{
		verifier: verifier,
		token:    token,
		rooms:    rooms,
		cfg:      cfg,
		logger:   logger,
		clients:  make(map[*client]struct{}),
		subs:     make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBuffer,
		WriteBufferSize: cfg.WriteBuffer,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP authenticates and upgrades a connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.Verify(h.token(r))
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		hub:       h,
		conn:      conn,
		accountID: accountID,
		send:      make(chan []byte, sendBuffer),
		rooms:     make(map[string]struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket connected", zap.String("account_id", accountID))

	go c.writePump()
	go c.readPump()
}

// Broadcast queues e for every subscriber of roomID. Subscribers whose
// queue is full are dropped.
func (h *Hub) Broadcast(roomID string, e gameserver.Event) {
	msg, err := json.Marshal(gameserver.Wrap(e))
	if err != nil {
		h.logger.Error("encoding event", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	h.mu.RLock()
	var slow []*client
	for c := range h.subs[roomID] {
		if !c.enqueue(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client",
			zap.String("account_id", c.accountID),
			zap.String("room_id", roomID),
		)
		h.remove(c)
	}
}

// join subscribes c to roomID and queues the room's catch-up events.
// A client already removed from the hub is not subscribed.
func (h *Hub) join(c *client, roomID string) {
	err := h.rooms.Attach(roomID, func(initial []gameserver.Event) {
		h.mu.Lock()
		if _, live := h.clients[c]; !live {
			h.mu.Unlock()
			return
		}
		set, ok := h.subs[roomID]
		if !ok {
			set = make(map[*client]struct{})
			h.subs[roomID] = set
		}
		set[c] = struct{}{}
		c.rooms[roomID] = struct{}{}
		h.mu.Unlock()
		for _, e := range initial {
			msg, err := json.Marshal(gameserver.Wrap(e))
			if err == nil {
				c.enqueue(msg)
			}
		}
	})
	if err != nil {
		h.logger.Debug("join rejected",
			zap.String("account_id", c.accountID),
			zap.String("room_id", roomID),
			zap.Error(err),
		)
	}
}

func (h *Hub) leave(c *client, roomID string) {
	h.mu.Lock()
	h.unsubscribeLocked(c, roomID)
	h.mu.Unlock()
}

func (h *Hub) unsubscribeLocked(c *client, roomID string) {
	if set, ok := h.subs[roomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, roomID)
		}
	}
	delete(c.rooms, roomID)
}

// remove unregisters c from every room and closes its queue.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for roomID := range c.rooms {
		h.unsubscribeLocked(c, roomID)
	}
	h.mu.Unlock()
	c.close()
}

// Subscribers returns the number of connections subscribed to roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[roomID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.remove(c)
	}
}

func (h *Hub) pongWait() time.Duration {
	if h.cfg.PongWait > 0 {
		return h.cfg.PongWait
	}
	return time.Minute
}

func (h *Hub) writeWait() time.Duration {
	if h.cfg.WriteWait > 0 {
		return h.cfg.WriteWait
	}
	return 10 * time.Second
}
