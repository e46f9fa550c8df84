package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, c)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s, err := EncodeCursor(Cursor{CreatedAt: ts, ID: 42})
	require.NoError(t, err)

	c, err = DecodeCursor(s)
	require.NoError(t, err)
	require.EqualValues(t, 42, c.ID)
	require.True(t, ts.Equal(c.CreatedAt))

	_, err = DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)
	require.ErrorIs(t, err, domain.ErrInvalidArg)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, 50, clampLimit(0, 50, 500))
	require.Equal(t, 500, clampLimit(10_000, 50, 500))
	require.Equal(t, 7, clampLimit(7, 50, 500))
}

func TestMapPgError(t *testing.T) {
	dup := &pgconn.PgError{Code: codeUniqueViolation}
	require.ErrorIs(t, mapPgError(dup), domain.ErrAlreadyExists)
	require.True(t, isUniqueViolation(dup))

	other := errors.New("boom")
	require.Equal(t, other, mapPgError(other))
}
