package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"campus-chat/internal/models"
)

var errClientClosed = errors.New("client closed")

// outboundEnvelope is the wire framing for everything the server emits.
type outboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one websocket connection. Writes are serialized through a
// mutex; the gorilla conn permits only one concurrent writer.
type Client struct {
	conn *websocket.Conn
	info ConnInfo

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

// Info returns the handshake metadata captured for this connection.
func (c *Client) Info() ConnInfo { return c.info }

// Send marshals the event into the envelope and writes it.
func (c *Client) Send(event models.OutboundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(outboundEnvelope{Event: event.Event(), Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close shuts the underlying connection at most once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.conn.Close()
	}
}
