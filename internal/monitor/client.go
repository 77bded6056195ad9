package monitor

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait bounds a single frame write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long the peer may go silent before the
	// connection is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait so a ping is always in
	// flight before the deadline.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBufferSize = 64
)

// streamClient is one WebSocket subscriber. The stream is one-way:
// the read pump exists only to service pong frames and the close
// handshake.
type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan streamMessage
	hub  *Hub
}

func newStreamClient(id string, conn *websocket.Conn, hub *Hub) *streamClient {
	return &streamClient{
		id:   id,
		conn: conn,
		send: make(chan streamMessage, sendBufferSize),
		hub:  hub,
	}
}

// readPump consumes and discards inbound frames until the peer goes
// away, keeping the pong handler serviced.
func (c *streamClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().
					Str("component", "monitor").
					Str("client_id", c.id).
					Err(err).
					Msg("stream client closed unexpectedly")
			}
			return
		}
	}
}

// writePump pushes queued messages and keepalive pings to the peer.
// It exits when the hub closes the send channel or a write fails.
func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Debug().
					Str("component", "monitor").
					Str("client_id", c.id).
					Err(err).
					Msg("stream write failed")
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

// trySend queues a message without blocking. False means the buffer
// is full.
func (c *streamClient) trySend(msg streamMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
