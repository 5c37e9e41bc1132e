package socket

import (
	"net/http"
	"time"

	"kolabnaskah/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second // Send ping every 30s
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Editors connect from the web app's own origin or a dev server.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades r and attaches the connection to room as a relay peer.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, room, userID string) {
	if room == "" {
		http.Error(w, "Missing room", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := newClient(hub, conn, room, userID)
	if !hub.register(client) {
		conn.Close()
		return
	}

	// Start reading and writing in separate goroutines
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		msg := Message{Room: c.Room, Sender: c, Frame: Frame{Type: messageType, Data: data}}
		select {
		case c.Hub.Broadcast <- msg:
		case <-c.Hub.quit:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(frame.Type, frame.Data); err != nil {
				return
			}
		// A ping every 30 seconds keeps the connection alive and detects if it has dropped.
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}

func timeNowPlusWriteWait() time.Time {
	return time.Now().Add(writeWait)
}
