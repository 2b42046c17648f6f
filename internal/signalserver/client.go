package signalserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tincan-labs/tincan/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection. The hub assigns its peer id at
// accept time; the id is only revealed to the peer in the joined
// envelope.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *signaling.Envelope
	id   string
	addr string

	// roomID is owned by the hub goroutine.
	roomID string

	mu         sync.Mutex
	sendClosed bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	addr := "unknown"
	if conn != nil {
		addr = conn.RemoteAddr().String()
	}
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan *signaling.Envelope, 256),
		id:   uuid.NewString(),
		addr: addr,
	}
}

// enqueue hands an envelope to the write pump. The send never blocks:
// a client that cannot drain its buffer loses messages until its read
// side times out and the connection is dropped.
func (c *Client) enqueue(env *signaling.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- env:
	default:
		c.hub.log.Warn("send buffer full, dropping message", "peer", c.id, "type", env.T)
	}
}

func (c *Client) sendError(message string) {
	c.enqueue(&signaling.Envelope{
		T:       signaling.TypeError,
		Message: message,
	})
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// readPump reads envelopes off the wire and feeds them to the hub. It
// owns the read side of the connection and unregisters the client on
// exit.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket read error", "peer", c.id, "error", err)
			}
			return
		}

		var env signaling.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.hub.inbound <- inbound{client: c, env: &env}
	}
}

// writePump writes queued envelopes and keeps the connection alive
// with pings. It owns the write side of the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.hub.log.Debug("websocket write error", "peer", c.id, "error", err)
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
