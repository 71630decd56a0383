package ws

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/manpreetbhatti/inkboard/internal/protocol"
	"github.com/manpreetbhatti/inkboard/internal/ratelimit"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 64 * 1024
	sendBufferSize    = 512
	messagesPerSecond = 200
	messageBurst      = 400
	maxViolations     = 1000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one participant connection. Its id doubles as the owner id of
// every stroke it draws.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	roomID string
	gate   *ratelimit.Gate
	id     string
}

func (c *Client) ID() string { return c.id }

func newClient(hub *Hub, conn *websocket.Conn, roomID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		roomID: roomID,
		gate:   ratelimit.NewGate(messagesPerSecond, messageBurst, maxViolations),
		id:     uuid.NewString(),
	}
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = "default"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	client := newClient(hub, conn, roomID)

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		in, err := protocol.Decode(message)
		if err != nil {
			if !errors.Is(err, protocol.ErrEmptyMessage) {
				log.Printf("⚠️ Invalid message from client %s: %v", c.clientLabel(), err)
			}
			continue
		}

		switch c.gate.Check(in.Type.Lossy()) {
		case ratelimit.Drop:
			if v := c.gate.Violations(); v%100 == 1 {
				log.Printf("⚠️ Rate limit exceeded for client %s (warning #%d)", c.clientLabel(), v)
			}
			continue
		case ratelimit.Disconnect:
			log.Printf("🚫 Disconnecting client %s for excessive rate limit violations", c.clientLabel())
			return
		}

		select {
		case c.hub.inbound <- &Event{Client: c, Message: in}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *Client) clientLabel() string {
	return c.id + "@" + c.roomID
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
