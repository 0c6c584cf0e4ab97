package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Shubbu03/illustrations/domain"
)

// Socket is the client side of the sync protocol: a websocket connection
// authenticated with a bearer token at dial time.
type Socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the server's /ws endpoint with the token as a query
// parameter. The server rejects the upgrade outright on a bad token.
func Dial(ctx context.Context, serverURL, token string) (*Socket, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return &Socket{conn: conn}, nil
}

func (s *Socket) Send(frame domain.Frame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// JoinRoom requests a subscription to the canvas slug. The joined_room
// ack arrives on the read loop.
func (s *Socket) JoinRoom(slug string) error {
	return s.Send(domain.Frame{Type: domain.FrameJoinRoom, Slug: slug})
}

func (s *Socket) LeaveRoom(roomID string) error {
	return s.Send(domain.Frame{Type: domain.FrameLeaveRoom, RoomID: roomID})
}

// Listen reads server frames and hands each to fn until the connection
// closes or the context is cancelled.
func (s *Socket) Listen(ctx context.Context, fn func(domain.Frame)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		var frame domain.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		fn(frame)
	}
}

func (s *Socket) Close() error {
	return s.conn.Close()
}
