package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
)

type CartEventType string

const (
	CartUpdated CartEventType = "cart.updated"
	CartCleared CartEventType = "cart.cleared"
)

// CartEvent tells a user's other sessions that their cart changed.
// Quantity is the resulting quantity of ProductID, 0 when the line is gone.
type CartEvent struct {
	Type      CartEventType `json:"type"`
	ProductID string        `json:"product_id,omitempty"`
	Quantity  int           `json:"quantity"`
	At        time.Time     `json:"at"`
}

type ClientMessage struct {
	Type string `json:"type"` // ping
}

type Client struct {
	Hub    *Hub
	Conn   *Conn
	UserID uint
	Send   chan []byte

	rateMu        sync.Mutex
	messageCount  int
	lastResetTime time.Time
}

func NewClient(hub *Hub, conn *Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 64),
	}
}

type userMessage struct {
	userID  uint
	payload []byte
}

// Hub fans cart events out to every open session of a user.
type Hub struct {
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan userMessage
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan userMessage, 1024),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every session.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			sessions := len(h.clients[client.UserID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients[msg.userID] {
				select {
				case client.Send <- msg.payload:
				default:
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"user_id": msg.userID,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.clients[client.UserID]
	kept := make([]*Client, 0, len(list))
	found := false
	for _, c := range list {
		if c == client {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return
	}

	if len(kept) == 0 {
		delete(h.clients, client.UserID)
	} else {
		h.clients[client.UserID] = kept
	}
	close(client.Send)

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"user_id":            client.UserID,
		"remaining_sessions": len(kept),
	})
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, list := range h.clients {
		for _, c := range list {
			close(c.Send)
		}
		delete(h.clients, userID)
	}
	logger.Info("WebSocket hub stopped")
}

func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		close(client.Send)
		return
	default:
	}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// NotifyCart queues event for every session of userID. Events are dropped
// when the broadcast queue is full; clients recover by reloading.
func (h *Hub) NotifyCart(userID uint, event CartEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal cart event", err)
		return
	}

	select {
	case h.broadcast <- userMessage{userID: userID, payload: data}:
	case <-h.done:
	default:
		logger.Warn("Broadcast channel full, cart event dropped", map[string]interface{}{
			"user_id": userID,
			"type":    event.Type,
		})
	}
}

// SessionCount returns the number of open sessions for userID.
func (h *Hub) SessionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// HandleClientMessage answers pings. Anything else is ignored.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.rateMu.Lock()
	now := time.Now()
	if now.Sub(client.lastResetTime) >= time.Second {
		client.messageCount = 0
		client.lastResetTime = now
	}
	client.messageCount++
	count := client.messageCount
	client.rateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type == "ping" {
		select {
		case client.Send <- []byte(`{"type":"pong"}`):
		default:
		}
	}
}
