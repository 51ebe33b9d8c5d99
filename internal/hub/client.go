package hub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soar/joybridge/internal/device"
	"github.com/soar/joybridge/internal/gamepad"
	"github.com/soar/joybridge/internal/liveness"
)

var errMissingIndex = errors.New("select_joystick needs an index")

// Commander executes commands sent by observers.
type Commander interface {
	SelectDevice(index int) (device.Info, error)
	UpdateMapping(raw map[string]any) (gamepad.Mapping, []error)
	Connection() liveness.Status
}

// Client represents a connected WebSocket client.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new Client attached to the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// ID returns the client's identifier used in logs.
func (c *Client) ID() string { return c.id }

// trySend queues msg without blocking. It reports false when the buffer is
// full or the client is gone.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendMessage(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msg.Type, err)
		return
	}
	c.trySend(data)
}

// WritePump sends messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	defer func() {
		c.conn.Close()
	}()

	for msg := range c.send {
		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		if err != nil {
			break
		}
	}
}

// ReadPump reads commands from the WebSocket until the connection drops.
func (c *Client) ReadPump(cmd Commander, b *Broadcaster) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			log.Printf("Error parsing client message: %v", err)
			c.sendMessage(NewErrorMessage(b.Next(), err, nil))
			continue
		}
		c.handle(clientMsg, cmd, b)
	}
}

func (c *Client) handle(msg ClientMessage, cmd Commander, b *Broadcaster) {
	switch msg.Type {
	case CmdSelectJoystick:
		if msg.Index == nil {
			c.sendMessage(NewErrorMessage(b.Next(), errMissingIndex, nil))
			return
		}
		// joystick_info reaches every client through the sampler events
		if _, err := cmd.SelectDevice(*msg.Index); err != nil {
			c.sendMessage(NewErrorMessage(b.Next(), err, nil))
		}

	case CmdUpdateMapping:
		if _, rejected := cmd.UpdateMapping(msg.Mapping); len(rejected) > 0 {
			c.sendMessage(NewErrorMessage(b.Next(), errors.New("mapping fields rejected"), rejected))
		}

	case CmdCheckConnection:
		c.sendMessage(NewMessage(b.Next(), TypeConnectionStatus, cmd.Connection()))

	default:
		log.Printf("Client %s sent unknown command %q", c.id, msg.Type)
	}
}
