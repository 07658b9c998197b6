package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// ValidStatus проверяет, что статус один из трех допустимых
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

// Имена полей в JSON — camelCase, их ждет дашборд
type Task struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	OwnerID     uuid.UUID `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type TaskFilter struct {
	Status *string
	Search *string
}

// TaskPatch — частичное обновление: nil означает "поле не передано".
// Пустая строка в Description — валидное значение, оно очищает поле.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
}

type Page struct {
	Page  int
	Limit int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}
