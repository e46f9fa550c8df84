package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type RoomRepository struct {
	db txBeginner
}

func NewRoomRepository(db txBeginner) *RoomRepository {
	return &RoomRepository{db: db}
}

// Get is read on every join; rooms are never cached above this layer.
func (r *RoomRepository) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var (
		rm   domain.Room
		kind string
	)
	err := r.db.QueryRow(ctx, queryGetRoom, id).Scan(&rm.ID, &rm.Name, &kind, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	rm.Kind = domain.ParseRoomKind(kind)
	return &rm, nil
}

// Create вставляет комнату и сразу добавляет создателя в room_users.
func (r *RoomRepository) Create(ctx context.Context, name string, kind domain.RoomKind, creator domain.UserID) (*domain.Room, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	room := &domain.Room{Name: name, Kind: kind}
	if err := tx.QueryRow(ctx, queryCreateRoom, name, string(kind)).Scan(&room.ID, &room.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	if _, err := tx.Exec(ctx, queryAddMember, room.ID, creator); err != nil {
		return nil, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepository) List(ctx context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}
	limit = clampLimit(limit, 20, 100)

	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, queryListRooms, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	rooms, err := scanRooms(rows)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(rooms) == limit {
		last := rooms[len(rooms)-1]
		next, _ = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: int64(last.ID)})
	}
	return rooms, next, nil
}

func (r *RoomRepository) ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx, queryListRoomsForUser, userID)
	if err != nil {
		return nil, err
	}
	return scanRooms(rows)
}

func scanRooms(rows pgx.Rows) ([]domain.Room, error) {
	defer rows.Close()

	rooms := make([]domain.Room, 0, 16)
	for rows.Next() {
		var (
			rm   domain.Room
			kind string
		)
		if err := rows.Scan(&rm.ID, &rm.Name, &kind, &rm.CreatedAt); err != nil {
			return nil, err
		}
		rm.Kind = domain.ParseRoomKind(kind)
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}
