package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type MembershipRepository struct {
	db querier
}

func NewMembershipRepository(db querier) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, queryIsMember, roomID, userID).Scan(&exists)
	return exists, err
}

// AddMember идемпотентен: повторная вставка той же пары (и гонка двух
// параллельных вставок) считается успехом.
func (r *MembershipRepository) AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if _, err := r.db.Exec(ctx, queryAddMember, roomID, userID); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (r *MembershipRepository) Members(ctx context.Context, roomID domain.RoomID) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx, queryListMembers, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
