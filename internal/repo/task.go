package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskflow-api/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

type Stats struct {
	ByStatus   map[string]int `json:"by_status"`
	TotalTasks int            `json:"total_tasks"`
}

type TaskRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo { // Конструктор
	return &TaskRepo{
		pool: pool,
	}
}

const taskColumns = "id, title, description, status, owner_id, created_at, updated_at"

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, status, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+taskColumns+`
	`, t.Title, t.Description, t.Status, t.OwnerID).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, r.mapError(err)
}

func (r *TaskRepo) Get(ctx context.Context, id, ownerID uuid.UUID) (model.Task, error) {
	var t model.Task
	err := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) List(ctx context.Context, ownerID uuid.UUID, filter model.TaskFilter, page model.Page) ([]model.Task, int, error) {
	search := escapeLike(filter.Search)

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM tasks
		WHERE owner_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR title ILIKE '%' || $3 || '%')
	`, ownerID, filter.Status, search).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	offset := (page.Page - 1) * page.Limit
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE owner_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR title ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, ownerID, filter.Status, search, page.Limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, page.Limit)
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

// Update применяет частичное обновление одним запросом: проверка владельца
// и запись атомарны, гонки check-then-write исключены на уровне БД
func (r *TaskRepo) Update(ctx context.Context, id, ownerID uuid.UUID, patch model.TaskPatch) (model.Task, error) {
	var t model.Task
	err := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = COALESCE($3, title),
		    description = COALESCE($4, description),
		    status = COALESCE($5, status),
		    updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+taskColumns+`
	`, id, ownerID, patch.Title, patch.Description, patch.Status).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

// ToggleStatus переключает COMPLETED <-> PENDING; любой незавершенный
// статус (включая IN_PROGRESS) становится COMPLETED
func (r *TaskRepo) ToggleStatus(ctx context.Context, id, ownerID uuid.UUID) (model.Task, error) {
	var t model.Task
	err := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET status = CASE WHEN status = 'COMPLETED' THEN 'PENDING' ELSE 'COMPLETED' END,
		    updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+taskColumns+`
	`, id, ownerID).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) SaveIdempotencyKey(ctx context.Context, key string, taskID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, task_id) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, taskID)
	return err
}

func (r *TaskRepo) GetIdempotencyKey(ctx context.Context, key string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT task_id FROM idempotency_keys WHERE key = $1
	`, key).Scan(&id)

	if err == pgx.ErrNoRows {
		return id, ErrorNotFound
	}
	return id, err
}

func (r *TaskRepo) GetStats(ctx context.Context, ownerID uuid.UUID) (Stats, error) {
	stats := Stats{ByStatus: make(map[string]int)}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM tasks
		WHERE owner_id = $1
		GROUP BY status
	`, ownerID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.TotalTasks += count
	}
	return stats, rows.Err()
}

// escapeLike экранирует спецсимволы LIKE в пользовательском вводе
func escapeLike(s *string) *string {
	if s == nil {
		return nil
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(*s)
	return &escaped
}

func (r *TaskRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrorConflict
		}
	}
	return err
}
