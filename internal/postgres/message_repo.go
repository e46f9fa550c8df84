package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type MessageRepository struct {
	db querier
}

func NewMessageRepository(db querier) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append пишет сообщение; id и created_at назначает база.
func (r *MessageRepository) Append(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (domain.MessageID, time.Time, error) {
	var (
		id        domain.MessageID
		createdAt time.Time
	)
	if err := r.db.QueryRow(ctx, queryAppendMessage, roomID, userID, text).Scan(&id, &createdAt); err != nil {
		return 0, time.Time{}, mapPgError(err)
	}
	return id, createdAt, nil
}

// History возвращает сообщения комнаты в порядке вставки (id ASC) начиная после курсора.
func (r *MessageRepository) History(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.Message, string, error) {
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	limit = clampLimit(limit, 50, 500)

	var afterID int64
	if cur != nil {
		afterID = cur.ID
	}

	rows, err := r.db.Query(ctx, queryHistory, roomID, afterID, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Author.ID, &m.Author.Username, &m.Text, &m.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		next, _ = EncodeCursor(Cursor{ID: int64(out[len(out)-1].ID)})
	}
	return out, next, nil
}
