package security

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Используется SigningMethodHS256 с общим секретом процесса.
type JWT struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

func NewJWT(secret, issuer string, ttl, clockSkew time.Duration) (*JWT, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &JWT{
		secret:    []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		clockSkew: clockSkew,
		now:       time.Now,
	}, nil
}

func (j *JWT) TTL() time.Duration {
	return j.ttl
}

type AccessClaims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issue выпускает токен с id/username пользователя и exp=now+ttl.
func (j *JWT) Issue(id domain.Identity, now time.Time) (string, error) {
	claims := AccessClaims{
		ID:       int64(id.ID),
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Verify returns the identity carried by a valid token. Every failure is
// reported as domain.ErrUnauthorized; the reason is only logged.
func (j *JWT) Verify(token string) (domain.Identity, error) {
	id, err := j.parse(token)
	if err != nil {
		slog.Debug("security.jwt.verify rejected", slog.Any("err", err))
		return domain.Identity{}, domain.ErrUnauthorized
	}

	return id, nil
}

func (j *JWT) parse(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, errors.New("empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.clockSkew),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, err
	}
	if !parsed.Valid {
		return domain.Identity{}, jwt.ErrTokenSignatureInvalid
	}

	id := domain.Identity{ID: domain.UserID(claims.ID), Username: claims.Username}
	if !id.Valid() {
		return domain.Identity{}, fmt.Errorf("incomplete claims: id=%d username=%q", claims.ID, claims.Username)
	}

	return id, nil
}
