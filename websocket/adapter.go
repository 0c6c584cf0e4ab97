package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shubbu03/illustrations/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
)

// Conn adapts one gorilla websocket to the domain Connection. Frames
// from the connection are handled strictly sequentially by the read
// pump; sends go through a buffered channel so broadcast never blocks
// on a peer's network.
type Conn struct {
	id      string
	userID  string
	ws      *websocket.Conn
	send    chan []byte
	broker  domain.Broadcaster
	handler domain.MessageHandler

	closeOnce sync.Once
}

func NewConn(id, userID string, ws *websocket.Conn, broker domain.Broadcaster, handler domain.MessageHandler) *Conn {
	return &Conn{
		id:      id,
		userID:  userID,
		ws:      ws,
		send:    make(chan []byte, 256),
		broker:  broker,
		handler: handler,
	}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

func (c *Conn) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Start runs the read and write pumps. It returns once the connection
// is established; teardown happens when either pump exits.
func (c *Conn) Start(ctx context.Context) {
	go c.writePump()
	go c.readPump(ctx)
}

// teardown evicts the connection from every room index and closes the
// transport. It runs exactly once no matter which path triggered it.
func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		c.broker.Disconnect(c)
		c.ws.Close()
	})
}

func (c *Conn) readPump(ctx context.Context) {
	defer c.teardown()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		c.handler.Handle(ctx, c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
