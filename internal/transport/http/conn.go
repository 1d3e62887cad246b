package http

import (
	"sync"
	"time"

	"mathduel-service/internal/protocol"
	"mathduel-service/internal/session"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// wsConn is a session.Transport over one websocket. A single writer goroutine
// owns the socket, so frames go out in Enqueue order.
type wsConn struct {
	conn   *websocket.Conn
	send   chan protocol.Outbound
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newWSConn(conn *websocket.Conn, buffer int, logger *zap.Logger) *wsConn {
	if buffer <= 0 {
		buffer = 32
	}
	return &wsConn{
		conn:   conn,
		send:   make(chan protocol.Outbound, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Enqueue never blocks; a full buffer is reported so the router can drop the client.
func (c *wsConn) Enqueue(msg protocol.Outbound) error {
	select {
	case <-c.done:
		return session.ErrTransportClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return session.ErrBufferFull
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			data, err := protocol.Encode(msg)
			if err != nil {
				c.logger.Error("encode outbound message", zap.String("type", string(msg.MessageType())), zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("ws write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ws ping error", zap.Error(err))
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is already queued so a final GAME_ENDED is not lost on close.
func (c *wsConn) flush() {
	for {
		select {
		case msg := <-c.send:
			data, err := protocol.Encode(msg)
			if err != nil {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
