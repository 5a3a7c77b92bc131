package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Define notification types
const (
	NotificationTypeConnected        = "connected"
	NotificationTypeWithdrawalUpdate = "withdrawal_update"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID string
	Conn   *websocket.Conn
	mu     sync.Mutex
}

// WriteJSON serializes writes to the underlying connection
func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(v)
}

// Hub maintains the set of active clients keyed by user id
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// a newer connection replaces the previous one for the same user
			if old, ok := h.clients[client.UserID]; ok && old != client {
				old.Conn.Close()
			}
			h.clients[client.UserID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// IsConnected reports whether the user has a live connection
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID string, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user not connected")
	}

	return client.WriteJSON(notification)
}

// NotifyWithdrawalUpdate tells a user that one of their withdrawals changed status
func (h *Hub) NotifyWithdrawalUpdate(userID, message string, data interface{}) error {
	return h.SendToUser(userID, Notification{
		Type:    NotificationTypeWithdrawalUpdate,
		Message: message,
		Data:    data,
		UserID:  userID,
	})
}
