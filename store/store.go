package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Shubbu03/illustrations/domain"
)

// Store is the durable room and chat storage. It doubles as the room
// directory (slug lookups) and the baseline shape source for joining
// clients.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS rooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE
		)`,
	); err != nil {
		return fmt.Errorf("create rooms table: %w", err)
	}
	if _, err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL
		)`,
	); err != nil {
		return fmt.Errorf("create chats table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRoom registers a slug and returns its durable room id. An
// already-registered slug returns the existing id.
func (s *Store) CreateRoom(ctx context.Context, slug string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (slug) VALUES ($1) ON CONFLICT(slug) DO NOTHING`, slug)
	if err != nil {
		return 0, fmt.Errorf("create room: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("create room: %w", err)
		}
		return id, nil
	}
	return s.RoomIDBySlug(ctx, slug)
}

func (s *Store) RoomIDBySlug(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM rooms WHERE slug = $1`, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrRoomNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("room lookup: %w", err)
	}
	return id, nil
}

// DeleteRoom removes a room and its chats.
func (s *Store) DeleteRoom(ctx context.Context, slug string) error {
	id, err := s.RoomIDBySlug(ctx, slug)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE room_id = $1`, id); err != nil {
		return fmt.Errorf("delete room chats: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// CreateChat inserts a chat row and returns its durable id.
func (s *Store) CreateChat(ctx context.Context, roomID int64, userID, message string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (room_id, user_id, message) VALUES ($1, $2, $3)`,
		roomID, userID, message)
	if err != nil {
		return 0, fmt.Errorf("insert chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert chat: %w", err)
	}
	return id, nil
}

// DeleteChat removes a chat row. A missing row is success, not an
// error: erase jobs are delivered at least once.
func (s *Store) DeleteChat(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// ChatRow is one persisted chat message: the durable id plus the
// serialized shape payload.
type ChatRow struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// ChatsByRoom returns up to limit rows for the room, most recent first.
func (s *Store) ChatsByRoom(ctx context.Context, roomID int64, limit, offset int) ([]ChatRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message FROM chats WHERE room_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var out []ChatRow
	for rows.Next() {
		var row ChatRow
		if err := rows.Scan(&row.ID, &row.Message); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return out, nil
}
