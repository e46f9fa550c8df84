package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/security"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

type TokenIssuer interface {
	Issue(id domain.Identity, now time.Time) (string, error)
}

type AuthResult struct {
	User  domain.Identity
	Token string
}

type AuthService struct {
	users      UserRepository
	tokens     TokenIssuer
	passPolicy security.BcryptConfig
	now        func() time.Time
}

func NewAuthService(users UserRepository, tokens TokenIssuer, passPolicy security.BcryptConfig, now func() time.Time) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		passPolicy: passPolicy,
		now:        now,
	}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		slog.Error("auth.register.existsByUsername failed", slog.Any("err", err))
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := security.HashPassword(password, &s.passPolicy)
	if err != nil {
		if !errors.Is(err, security.ErrPasswordTooShort) {
			slog.Error("auth.register.hashPassword failed", slog.Any("err", err))
		}
		return nil, err
	}

	u := &domain.User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		// гонка двух регистраций одного имени
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, ErrUsernameTaken
		}
		slog.Error("auth.register.create failed", slog.Any("err", err))
		return nil, err
	}

	return s.issue(u.Identity())
}

// Login проверяет пароль и выпускает токен. Отсутствующий пользователь и
// неверный пароль неразличимы для клиента.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		slog.Error("auth.login.getByUsername failed", slog.Any("err", err))
		return nil, err
	}

	if err := security.ComparePassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(u.Identity())
}

func (s *AuthService) issue(id domain.Identity) (*AuthResult, error) {
	token, err := s.tokens.Issue(id, s.now())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{User: id, Token: token}, nil
}
