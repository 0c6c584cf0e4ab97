package domain

import (
	"context"
	"encoding/json"
	"errors"
)

// Frame is one protocol message in either direction. The kind tag selects
// which of the remaining fields are meaningful.
type Frame struct {
	Type    string `json:"type"`
	Slug    string `json:"slug,omitempty"`
	RoomID  string `json:"roomID,omitempty"`
	Message string `json:"message,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
	UserID  string `json:"userID,omitempty"`
}

const (
	FrameJoinRoom   = "join_room"
	FrameJoinedRoom = "joined_room"
	FrameLeaveRoom  = "leave_room"
	FrameLeftRoom   = "left_room"
	FrameChat       = "chat"
	FrameEraseChat  = "erase_chat"
	FrameError      = "error"
)

func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// JobKind names the two persistence operations.
type JobKind string

const (
	JobCreate JobKind = "chat"
	JobErase  JobKind = "erase_chat"
)

// Job is one unit of write-behind work. Delivery is at least once, so
// executing the same job twice must be safe.
type Job struct {
	Kind    JobKind `json:"kind"`
	RoomID  int64   `json:"roomID"`
	UserID  string  `json:"userID"`
	Message string  `json:"message,omitempty"`
	ChatID  int64   `json:"chatId,omitempty"`
}

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotMember    = errors.New("not a member of the room")
	ErrQueueFull    = errors.New("persistence queue is full")
	ErrQueueClosed  = errors.New("persistence queue is closed")
)

// Connection is one live transport session with an authenticated user.
type Connection interface {
	ID() string
	UserID() string
	Send(data []byte) error
	Close() error
}

// Broadcaster owns the room subscription index. A sender of nil means
// deliver to every subscriber, including the frame's author.
type Broadcaster interface {
	Join(conn Connection, roomID int64)
	Leave(conn Connection, roomID int64)
	Disconnect(conn Connection)
	IsMember(conn Connection, roomID int64) bool
	Broadcast(roomID int64, sender Connection, data []byte)
	Stats() (rooms, clients int)
}

// MessageHandler processes one inbound frame from a connection.
type MessageHandler interface {
	Handle(ctx context.Context, conn Connection, data []byte)
}

// Queue accepts persistence jobs without blocking on durable storage.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Store is the durable chat row storage consumed by the queue worker.
type Store interface {
	CreateChat(ctx context.Context, roomID int64, userID, message string) (int64, error)
	DeleteChat(ctx context.Context, chatID int64) error
}

// RoomDirectory resolves a canvas slug to its durable room id. Unknown
// slugs yield ErrRoomNotFound.
type RoomDirectory interface {
	RoomIDBySlug(ctx context.Context, slug string) (int64, error)
}

// TokenVerifier validates a bearer credential. It fails closed: any
// malformed, expired, or mis-signed token is a rejection.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Publisher carries a frame from the persistence worker back into the
// room it belongs to, so the durable id reaches subscribers.
type Publisher interface {
	Publish(ctx context.Context, frame Frame) error
}
