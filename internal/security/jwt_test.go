package security

import (
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestJWT(t *testing.T) *JWT {
	t.Helper()
	j, err := NewJWT("test-secret", "chat-service", time.Hour, 0)
	require.NoError(t, err)
	return j
}

func TestJWT_IssueAndVerify(t *testing.T) {
	j := newTestJWT(t)
	alice := domain.Identity{ID: 1, Username: "alice"}

	token, err := j.Issue(alice, time.Now())
	require.NoError(t, err)

	got, err := j.Verify(token)
	require.NoError(t, err)
	require.Equal(t, alice, got)
}

func TestJWT_VerifyRejectsWithSameError(t *testing.T) {
	j := newTestJWT(t)
	alice := domain.Identity{ID: 1, Username: "alice"}

	expired, err := j.Issue(alice, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	other, err := NewJWT("other-secret", "chat-service", time.Hour, 0)
	require.NoError(t, err)
	foreign, err := other.Issue(alice, time.Now())
	require.NoError(t, err)

	wrongIssuer, err := NewJWT("test-secret", "someone-else", time.Hour, 0)
	require.NoError(t, err)
	badIss, err := wrongIssuer.Issue(alice, time.Now())
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
		ID:       1,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chat-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noUsername, err := j.Issue(domain.Identity{ID: 7}, time.Now())
	require.NoError(t, err)

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not.a.token",
		"expired":     expired,
		"foreign key": foreign,
		"issuer":      badIss,
		"alg none":    none,
		"no username": noUsername,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := j.Verify(token)
			require.ErrorIs(t, err, domain.ErrUnauthorized)
			require.Equal(t, domain.ErrUnauthorized.Error(), err.Error())
		})
	}
}

func TestNewJWT_RequiresSecret(t *testing.T) {
	_, err := NewJWT("", "", time.Hour, 0)
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("123", nil)
	require.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("hunter22", &BcryptConfig{Cost: 4})
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hash, "hunter22"))
	require.ErrorIs(t, ComparePassword(hash, "hunter23"), ErrInvalidCredentials)
}
