package signaling

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tincan-labs/tincan/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("signaling client closed")

// Client manages the WebSocket connection to the signaling server. After
// Connect, envelopes from the server arrive on Incoming; the channel is
// closed when the connection dies, which is the session's cue that
// signaling is gone.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *Envelope
	outgoing  chan *Envelope
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewClient creates a signaling client for the given ws(s) URL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Envelope, 32),
		outgoing:  make(chan *Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and
// write pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Copy the default dialer and swap in our resolver fallback.
	dialer := *websocket.DefaultDialer
	dialer.NetDial = func(network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		resolved, err := dns.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}

		return net.Dial(network, net.JoinHostPort(resolved, port))
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads envelopes from the connection onto the incoming channel.
// Closing incoming on exit signals transport loss to the consumer.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		c.incoming <- &env
	}
}

// writePump writes queued envelopes and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues an envelope for the server. It never blocks: a full
// queue means the write pump is dead or stalled, and the caller is
// better served by an error than by waiting on a broken connection.
func (c *Client) Send(env *Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return errors.New("signaling send queue full")
	}
}

// Incoming returns the channel of server envelopes. It is closed when the
// connection is lost or closed.
func (c *Client) Incoming() <-chan *Envelope {
	return c.incoming
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}
