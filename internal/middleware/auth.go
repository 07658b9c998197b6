package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskflow-api/internal/token"
	"github.com/BuzzLyutic/taskflow-api/pkg/respond"
)

// Identity — проверенная личность запроса, кладется в контекст
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type contextKey struct{}

var identityKey contextKey

// IdentityFromContext достает личность, положенную Authenticate
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity кладет личность в контекст напрямую, минуя проверку токена
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

type Guard struct {
	tokens *token.Service
}

func NewGuard(tokens *token.Service) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate проверяет Bearer-токен и пропускает запрос дальше
// с заполненной Identity. Хранилище не трогает.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respond.Error(w, r, http.StatusUnauthorized, "no token provided")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respond.Error(w, r, http.StatusUnauthorized, "no token provided")
			return
		}

		claims, err := g.tokens.VerifyAccessToken(parts[1])
		if err != nil {
			// "expired" и "invalid" различимы: по первому клиент идет на
			// refresh, по второму — на повторный логин
			if err == token.ErrExpiredToken {
				respond.Error(w, r, http.StatusUnauthorized, "token expired")
			} else {
				respond.Error(w, r, http.StatusUnauthorized, "invalid token")
			}
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
