package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/BuzzLyutic/taskflow-api/internal/model"
	"github.com/BuzzLyutic/taskflow-api/internal/repo"
	"github.com/BuzzLyutic/taskflow-api/internal/token"
)

var (
	// Одна ошибка и для неизвестного email, и для неверного пароля
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

type RegisterInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required,min=6"`
	Name     string `validate:"required"`
}

type LoginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type AuthService struct {
	users    repo.UserRepository
	tokens   *token.Service
	validate *validator.Validate
}

func NewAuthService(users repo.UserRepository, tokens *token.Service) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.User{}, ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}

	return s.users.Create(ctx, model.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
	})
}

// Login выпускает пару токенов и перезаписывает refresh-токен на
// пользователе: все прочие сессии этого пользователя отзываются
func (s *AuthService) Login(ctx context.Context, in LoginInput) (model.User, string, string, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.User{}, "", "", ErrValidation
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repo.ErrorNotFound) {
			return model.User{}, "", "", ErrInvalidCredentials
		}
		return model.User{}, "", "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return model.User{}, "", "", ErrInvalidCredentials
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return model.User{}, "", "", err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return model.User{}, "", "", err
	}

	expiresAt := time.Now().Add(s.tokens.RefreshTTL())
	if err := s.users.SetRefreshToken(ctx, user.ID, refreshToken, expiresAt); err != nil {
		return model.User{}, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

// Refresh выпускает новый access-токен. Сам refresh-токен не ротируется.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrUnauthorized
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrorNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	// Криптографически валидный токен мог быть вытеснен новым логином
	// или логаутом — сверяем с сохраненным значением
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return "", ErrUnauthorized
	}

	return s.tokens.IssueAccessToken(user.ID, user.Email)
}

// Logout идемпотентен: невалидный или отсутствующий токен — no-op
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	return s.users.ClearRefreshToken(ctx, claims.UserID)
}
