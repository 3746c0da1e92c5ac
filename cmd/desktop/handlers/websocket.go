package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/models"
	"github.com/kimhsiao/tripplanner/backend/internal/sync"
	"github.com/kimhsiao/tripplanner/backend/internal/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// WebSocket event types
const (
	EventSyncStarted    = "sync.started"
	EventSyncCompleted  = "sync.completed"
	EventSyncFailed     = "sync.failed"
	EventPlanCached     = "plan.cached"
	EventPlanRemoved    = "plan.removed"
	EventFavoriteQueued = "favorite.queued"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isLoopbackHost,
}

// isLoopbackHost only admits connections addressed to this machine.
func isLoopbackHost(r *http.Request) bool {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Envelope wraps all WebSocket messages.
type Envelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

type message struct {
	typ  string
	data []byte
}

// client is one WebSocket connection. An empty subscription set receives every event.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu            gosync.RWMutex
	subscriptions map[string]bool
}

func (c *client) wants(typ string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[typ]
}

// Hub maintains active client connections and broadcasts events.
type Hub struct {
	clients    map[string]*client
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         gosync.RWMutex
}

// NewHub creates a hub and starts its loop. Stop ends it.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]*client),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Stop disconnects every client.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client connected", map[string]interface{}{"client_id": c.id, "total": total})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client disconnected", map[string]interface{}{"client_id": c.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				if !c.wants(msg.typ) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					// Slow consumer
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all subscribed clients. It drops the event
// when the hub is stopped or its buffer is full.
func (h *Hub) Broadcast(eventType string, data map[string]interface{}) {
	bytes, err := json.Marshal(Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		logging.Error("Failed to marshal WebSocket event", err, map[string]interface{}{"type": eventType})
		return
	}

	select {
	case <-h.done:
	case h.broadcast <- message{typ: eventType, data: bytes}:
	default:
		logging.Warn("WebSocket broadcast buffer full, dropping event", map[string]interface{}{"type": eventType})
	}
}

// SyncStarted notifies clients that a favorites drain began.
func (h *Hub) SyncStarted() {
	h.Broadcast(EventSyncStarted, map[string]interface{}{"status": "started"})
}

// SyncFinished notifies clients of the drain outcome.
func (h *Hub) SyncFinished(res *sync.DrainResult, err error) {
	if err != nil {
		h.Broadcast(EventSyncFailed, map[string]interface{}{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}
	if res == nil {
		return
	}
	data := map[string]interface{}{
		"status":    "completed",
		"attempted": res.Attempted,
		"synced":    res.Synced,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"duration":  res.Duration.Milliseconds(),
	}
	if len(res.Errors) > 0 {
		data["errors"] = res.Errors
	}
	h.Broadcast(EventSyncCompleted, data)
}

// BroadcastPlanCached notifies clients that a plan was written to the store.
func (h *Hub) BroadcastPlanCached(planID string) {
	h.Broadcast(EventPlanCached, map[string]interface{}{"plan_id": planID})
}

// BroadcastPlanRemoved notifies clients that a plan left the store.
func (h *Hub) BroadcastPlanRemoved(planID string) {
	h.Broadcast(EventPlanRemoved, map[string]interface{}{"plan_id": planID})
}

// BroadcastFavoriteQueued notifies clients of a queued favorite change.
func (h *Hub) BroadcastFavoriteQueued(change *models.PendingFavoriteChange) {
	h.Broadcast(EventFavoriteQueued, map[string]interface{}{
		"id":          change.ID,
		"plan_id":     change.PlanID,
		"is_favorite": change.IsFavorite,
	})
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("WebSocket read error", map[string]interface{}{"client_id": c.id, "error": err.Error()})
			}
			return
		}

		var msg struct {
			Action string   `json:"action"`
			Events []string `json:"events"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			logging.Debug("Ignoring malformed WebSocket message", map[string]interface{}{"client_id": c.id})
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})
		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()
		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a direct message to this client. The hub closes send only
// while holding its lock after dropping the client, so a client no longer
// registered, or one with a full buffer, loses the reply.
func (c *client) reply(payload map[string]interface{}) {
	payload["timestamp"] = time.Now().Unix()
	bytes, err := json.Marshal(payload)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.hub.clients[c.id] != c {
		return
	}
	select {
	case c.send <- bytes:
	default:
	}
}

// Events handles GET /events by upgrading to a WebSocket.
func (h *Hub) Events(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	cl := &client{
		id:            uuid.New(),
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		hub:           h,
		subscriptions: make(map[string]bool),
	}

	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return nil
	}

	go cl.writePump()
	go cl.readPump()
	return nil
}
