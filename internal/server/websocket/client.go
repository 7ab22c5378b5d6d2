// Package websocket is the browser transport for the realtime hub. Each
// upgraded connection becomes a Client that the hub delivers to and that
// relays join and leave requests back to the hub.
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/internal/realtime/hub"
	"github.com/agentstation/statuspage/internal/realtime/rooms"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
)

// Hub is the part of the realtime hub a Client talks to.
type Hub interface {
	Register(conn hub.Connection)
	Unregister(id string)
	Join(id, room string) error
	Leave(id, room string)
}

// ErrSendBufferFull is returned by Send when the client cannot keep up. The
// client is disconnected and expected to reconnect and resync.
var ErrSendBufferFull = errors.New("websocket send buffer full")

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client is one websocket connection. It implements hub.Connection.
type Client struct {
	id     string
	hub    Hub
	conn   *websocket.Conn
	send   chan events.Event
	done   chan struct{}
	once   sync.Once
	logger *zerolog.Logger
}

var _ hub.Connection = (*Client)(nil)

// NewClient wraps an upgraded connection.
func NewClient(id string, h Hub, conn *websocket.Conn, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("connection_id", id).Logger()
	return &Client{
		id:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan events.Event, sendBufferSize),
		done:   make(chan struct{}),
		logger: &l,
	}
}

// ID implements hub.Connection.
func (c *Client) ID() string { return c.id }

// Send implements hub.Connection. It never blocks: a full buffer closes the
// client.
func (c *Client) Send(e events.Event) error {
	select {
	case <-c.done:
		return errors.ErrClosed
	default:
	}
	select {
	case c.send <- e:
		return nil
	case <-c.done:
		return errors.ErrClosed
	default:
		c.logger.Warn().Str("kind", string(e.Kind)).Msg("WebSocket client too slow, disconnecting")
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// Close stops both pumps. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Serve registers the client with the hub and runs both pumps. It returns
// once the read side fails or the client is closed.
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.WritePump()
	c.ReadPump()
}

// ReadPump handles join and leave requests until the connection fails, then
// unregisters the client from every room.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c.id)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		msg, err := events.DecodeClient(data)
		if err != nil {
			c.logger.Debug().Err(err).Msg("Ignoring malformed client message")
			continue
		}
		room := rooms.RoomName(msg.RoomKey)

		switch msg.Action {
		case events.ActionJoin:
			err := c.hub.Join(c.id, room)
			switch {
			case err == nil:
			case errors.IsUnknownConnection(err):
				// The hub already dropped us; the read error follows shortly.
				c.logger.Debug().Err(err).Str("room", room).Msg("Join ignored")
			case errors.Is(err, errors.ErrClosed):
				return
			default:
				c.logger.Warn().Err(err).Str("room", room).Msg("Join rejected")
			}
		case events.ActionLeave:
			c.hub.Leave(c.id, room)
		}
	}
}

// WritePump sends the handshake acknowledgement, then queued events and
// keepalive pings, until the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	ack, err := events.EncodeConnected(c.id)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode handshake")
		return
	}
	if !c.write(websocket.TextMessage, ack) {
		return
	}

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case e := <-c.send:
			frame, err := events.Encode(e)
			if err != nil {
				c.logger.Error().Err(err).Str("kind", string(e.Kind)).Msg("Failed to encode event")
				continue
			}
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Msg("WebSocket write failed")
		return false
	}
	return true
}
