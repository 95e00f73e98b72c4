package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Client is one websocket connection. Outbound frames go through a
// buffered channel so a slow consumer never blocks a broadcast; when the
// buffer fills the client is dropped instead.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	socketID  string
	accountID string
	userID    string
	joined    map[string]bool
	logger    *logrus.Logger

	closeOnce sync.Once
	done      chan struct{}

	writeTimeout time.Duration
}

func newClient(conn *websocket.Conn, socketID string, bufferSize int, writeTimeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		conn:         conn,
		send:         make(chan []byte, bufferSize),
		socketID:     socketID,
		joined:       make(map[string]bool),
		logger:       logger,
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// SocketID returns the server-assigned connection ID.
func (c *Client) SocketID() string {
	return c.socketID
}

// enqueue queues a pre-marshalled frame for delivery. Drops the client
// when its buffer is full.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.WithField("socket_id", c.socketID).Warn("Client send buffer full, dropping connection")
		c.close(websocket.StatusPolicyViolation, "send buffer overflow")
	}
}

// sendFrame marshals and queues a single event for this client only.
func (c *Client) sendFrame(event string, payload interface{}) {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		c.logger.WithError(err).WithField("event", event).Error("Failed to marshal client frame")
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(message string) {
	c.sendFrame("error", map[string]string{"message": message})
}

// writePump drains the send channel onto the wire. It exits when the
// client is closed or the parent context is cancelled.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (c *Client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}
