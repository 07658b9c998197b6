package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskflow-api/internal/model"
)

// UserRepository определяет интерфейс для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

// TaskRepository определяет интерфейс для работы с задачами.
// Все операции чтения и записи ограничены владельцем (ownerID).
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (model.Task, error)
	List(ctx context.Context, ownerID uuid.UUID, filter model.TaskFilter, page model.Page) ([]model.Task, int, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	ToggleStatus(ctx context.Context, id, ownerID uuid.UUID) (model.Task, error)
	SaveIdempotencyKey(ctx context.Context, key string, taskID uuid.UUID) error
	GetIdempotencyKey(ctx context.Context, key string) (uuid.UUID, error)
	GetStats(ctx context.Context, ownerID uuid.UUID) (Stats, error)
}
