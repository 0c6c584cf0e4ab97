package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/Shubbu03/illustrations/domain"
)

// Handler dispatches one inbound frame per call. The adapter calls it
// sequentially per connection, so a connection's own frames are never
// reordered.
type Handler struct {
	broker domain.Broadcaster
	queue  domain.Queue
	rooms  domain.RoomDirectory
}

func NewHandler(broker domain.Broadcaster, queue domain.Queue, rooms domain.RoomDirectory) *Handler {
	return &Handler{broker: broker, queue: queue, rooms: rooms}
}

func (h *Handler) Handle(ctx context.Context, conn domain.Connection, data []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("invalid frame", "clientId", conn.ID(), "error", err)
		h.sendError(conn, "Invalid message format.")
		return
	}

	switch frame.Type {
	case domain.FrameJoinRoom:
		h.handleJoin(ctx, conn, frame)
	case domain.FrameLeaveRoom:
		h.handleLeave(conn, frame)
	case domain.FrameChat:
		h.handleChat(ctx, conn, frame)
	case domain.FrameEraseChat:
		h.handleErase(ctx, conn, frame)
	default:
		h.sendError(conn, "Unknown message type")
	}
}

func (h *Handler) handleJoin(ctx context.Context, conn domain.Connection, frame domain.Frame) {
	roomID, err := h.rooms.RoomIDBySlug(ctx, frame.Slug)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			h.sendError(conn, "Room does not exist.")
			return
		}
		slog.Error("room lookup failed", "slug", frame.Slug, "clientId", conn.ID(), "error", err)
		h.sendError(conn, "Failed to join room")
		return
	}

	h.broker.Join(conn, roomID)
	h.send(conn, domain.Frame{
		Type:   domain.FrameJoinedRoom,
		Slug:   frame.Slug,
		RoomID: strconv.FormatInt(roomID, 10),
	})
}

func (h *Handler) handleLeave(conn domain.Connection, frame domain.Frame) {
	roomID, ok := h.parseRoomID(conn, frame.RoomID)
	if !ok {
		return
	}

	h.broker.Leave(conn, roomID)
	h.send(conn, domain.Frame{
		Type:   domain.FrameLeftRoom,
		Slug:   frame.Slug,
		RoomID: frame.RoomID,
	})
}

func (h *Handler) handleChat(ctx context.Context, conn domain.Connection, frame domain.Frame) {
	roomID, ok := h.requireMembership(conn, frame.RoomID)
	if !ok {
		return
	}

	// Enqueue and broadcast are independent: a queue failure is
	// reported to the sender only, and peers still see the stroke.
	if err := h.queue.Enqueue(ctx, domain.Job{
		Kind:    domain.JobCreate,
		RoomID:  roomID,
		UserID:  conn.UserID(),
		Message: frame.Message,
	}); err != nil {
		slog.Error("enqueue chat failed", "room", roomID, "clientId", conn.ID(), "error", err)
		h.sendError(conn, "Failed to send chat message")
	}

	h.broadcast(conn, roomID, domain.Frame{
		Type:    domain.FrameChat,
		RoomID:  frame.RoomID,
		Message: frame.Message,
		UserID:  conn.UserID(),
	})
}

func (h *Handler) handleErase(ctx context.Context, conn domain.Connection, frame domain.Frame) {
	roomID, ok := h.requireMembership(conn, frame.RoomID)
	if !ok {
		return
	}

	if err := h.queue.Enqueue(ctx, domain.Job{
		Kind:   domain.JobErase,
		RoomID: roomID,
		UserID: conn.UserID(),
		ChatID: frame.ChatID,
	}); err != nil {
		slog.Error("enqueue erase failed", "room", roomID, "clientId", conn.ID(), "error", err)
		h.sendError(conn, "Failed to erase chat message")
	}

	h.broadcast(conn, roomID, domain.Frame{
		Type:   domain.FrameEraseChat,
		RoomID: frame.RoomID,
		ChatID: frame.ChatID,
	})
}

// requireMembership parses the wire room id and checks the caller joined
// it. Chat and erase from non-members are protocol violations answered
// with an error frame; the connection itself stays open.
func (h *Handler) requireMembership(conn domain.Connection, wireRoomID string) (int64, bool) {
	roomID, ok := h.parseRoomID(conn, wireRoomID)
	if !ok {
		return 0, false
	}
	if !h.broker.IsMember(conn, roomID) {
		slog.Warn("message for room not joined", "room", roomID, "clientId", conn.ID())
		h.sendError(conn, "Not a member of this room")
		return 0, false
	}
	return roomID, true
}

func (h *Handler) parseRoomID(conn domain.Connection, wireRoomID string) (int64, bool) {
	roomID, err := strconv.ParseInt(wireRoomID, 10, 64)
	if err != nil {
		h.sendError(conn, "Invalid room id")
		return 0, false
	}
	return roomID, true
}

func (h *Handler) broadcast(sender domain.Connection, roomID int64, frame domain.Frame) {
	data, err := frame.Encode()
	if err != nil {
		slog.Error("marshal broadcast frame", "room", roomID, "error", err)
		return
	}
	h.broker.Broadcast(roomID, sender, data)
}

func (h *Handler) send(conn domain.Connection, frame domain.Frame) {
	data, err := frame.Encode()
	if err != nil {
		slog.Error("marshal frame", "clientId", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Warn("send frame failed", "clientId", conn.ID(), "error", err)
	}
}

func (h *Handler) sendError(conn domain.Connection, message string) {
	h.send(conn, domain.Frame{Type: domain.FrameError, Message: message})
}
