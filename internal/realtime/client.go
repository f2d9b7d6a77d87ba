package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client delivery errors.
var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowClient   = errors.New("client send buffer full")
)

// Client is a websocket connection subscribed to organization rooms.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, sendBuffer int, logger *slog.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		logger: logger.With("client_id", id),
	}
}

// ID returns the client's unique handle.
func (c *Client) ID() string {
	return c.id
}

// Deliver queues msg without blocking. A client whose buffer is full is
// considered stuck: it is closed and removed from every room.
func (c *Client) Deliver(msg Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
		return nil
	default:
	}
	c.closeLocked()
	c.mu.Unlock()

	c.hub.Disconnect(c)
	return ErrSlowClient
}

// Close stops outbound delivery. The write pump sends a close frame and exits.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run starts both pumps and blocks until the connection is gone.
func (c *Client) Run() {
	connectionsActive.Inc()
	defer connectionsActive.Dec()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump()
	<-done
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleIncoming(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientMessage is a message sent by the browser.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomPayload struct {
	OrganizationID string `json:"organization_id"`
}

func (c *Client) handleIncoming(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(MessageError, "", map[string]string{"message": "invalid message"})
		return
	}

	switch msg.Type {
	case MessageJoinOrganization, MessageLeaveOrganization:
		var p roomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.reply(MessageError, "", map[string]string{"message": "invalid payload"})
			return
		}
		if _, err := uuid.Parse(p.OrganizationID); err != nil {
			c.reply(MessageError, "", map[string]string{"message": "invalid organization_id"})
			return
		}

		if msg.Type == MessageJoinOrganization {
			if !c.hub.Join(p.OrganizationID, c) {
				c.reply(MessageError, p.OrganizationID, map[string]string{"message": "realtime unavailable"})
				return
			}
			c.reply(MessageJoined, p.OrganizationID, nil)
		} else {
			c.hub.Leave(p.OrganizationID, c)
			c.reply(MessageLeft, p.OrganizationID, nil)
		}

	default:
		c.logger.Debug("ignoring unknown client message", "type", msg.Type)
	}
}

func (c *Client) reply(msgType, orgID string, payload any) {
	err := c.Deliver(Message{
		Type:           EventType(msgType),
		OrganizationID: orgID,
		Payload:        payload,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		c.logger.Debug("failed to queue reply", "type", msgType, "error", err)
	}
}
