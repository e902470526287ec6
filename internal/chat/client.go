package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"school-chat/internal/metrics"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a frame to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings with this period. Must be less than pongWait.
	maxMessageSize = 8192                // Maximum inbound frame size.
	sendBufferSize = 256
)

var (
	// ErrBufferFull is returned by enqueue when the client's outbound
	// buffer is full. The dispatcher treats it as a dead peer.
	ErrBufferFull = errors.New("chat: client send buffer full")

	// ErrClientClosed is returned by enqueue after the client has been
	// torn down.
	ErrClientClosed = errors.New("chat: client closed")
)

// Client is one live bidirectional channel for a single authenticated user.
// All outbound frames pass through the buffered send channel and are written
// by writePump, so write order matches dispatch order.
type Client struct {
	UserID        string
	Name          string
	InstitutionID string

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, userID, name, institutionID string) *Client {
	return &Client{
		UserID:        userID,
		Name:          name,
		InstitutionID: institutionID,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
	}
}

// enqueue places a frame on the outbound channel without blocking. A full
// buffer means the peer stopped draining; the caller decides what to do.
func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrBufferFull
	}
}

// close tears the connection down exactly once. A non-zero code sends a
// close control frame first so the peer learns why.
func (c *Client) close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		if code != 0 {
			deadline := time.Now().Add(writeWait)
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason), deadline)
		}
		c.conn.Close()
	})
}

// writePump drains the send channel onto the websocket connection. It is the
// only goroutine that writes data frames, which preserves per-connection
// ordering. Runs until the client is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			metrics.FramesSent.Inc()

		case <-c.done:
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
