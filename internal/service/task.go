package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskflow-api/internal/model"
	"github.com/BuzzLyutic/taskflow-api/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
}

type TaskService struct {
	repo repo.TaskRepository
}

func NewTaskService(repo repo.TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

func (s *TaskService) Create(ctx context.Context, ownerID uuid.UUID, in CreateTaskInput, idempKey string) (model.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Task{}, ErrValidation
	}
	if in.Status == "" {
		in.Status = model.StatusPending
	}
	if !model.ValidStatus(in.Status) {
		return model.Task{}, ErrValidation
	}

	if idempKey != "" { // Повторный запрос с тем же ключом возвращает уже созданную задачу
		if existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey); err == nil {
			return s.repo.Get(ctx, existingID, ownerID)
		}
	}

	task, err := s.repo.Create(ctx, model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		OwnerID:     ownerID,
	})
	if err != nil {
		return task, err
	}

	if idempKey != "" {
		s.repo.SaveIdempotencyKey(ctx, idempKey, task.ID)
	}

	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id, ownerID uuid.UUID) (model.Task, error) {
	return s.repo.Get(ctx, id, ownerID)
}

func (s *TaskService) List(ctx context.Context, ownerID uuid.UUID, page, limit int, status, search string) ([]model.Task, model.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}

	var filter model.TaskFilter
	if model.ValidStatus(status) { // Неизвестный статус молча игнорируем
		filter.Status = &status
	}
	if search != "" {
		filter.Search = &search
	}

	tasks, total, err := s.repo.List(ctx, ownerID, filter, model.Page{Page: page, Limit: limit})
	if err != nil {
		return nil, model.Pagination{}, err
	}

	return tasks, model.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *TaskService) Update(ctx context.Context, id, ownerID uuid.UUID, patch model.TaskPatch) (model.Task, error) {
	if patch.Status != nil && !model.ValidStatus(*patch.Status) {
		return model.Task{}, ErrValidation
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		// Пустой title не затирает существующий — считаем поле непереданным
		patch.Title = nil
	}
	return s.repo.Update(ctx, id, ownerID, patch)
}

func (s *TaskService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	return s.repo.Delete(ctx, id, ownerID)
}

func (s *TaskService) ToggleStatus(ctx context.Context, id, ownerID uuid.UUID) (model.Task, error) {
	return s.repo.ToggleStatus(ctx, id, ownerID)
}

func (s *TaskService) GetStats(ctx context.Context, ownerID uuid.UUID) (repo.Stats, error) {
	return s.repo.GetStats(ctx, ownerID)
}
