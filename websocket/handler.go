package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades an authenticated request and registers the connection
// for withdrawal status updates.
func HandleWebSocket(c echo.Context, hub *Hub, userID string) error {
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	hub.register <- client

	client.WriteJSON(Notification{
		Type:    NotificationTypeConnected,
		Message: "WebSocket connection established",
		UserID:  userID,
	})

	// The channel is server-to-client; reads only detect disconnects
	go func() {
		defer func() {
			hub.unregister <- client
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	return nil
}
