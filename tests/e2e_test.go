package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskflow-api/internal/handler"
	"github.com/BuzzLyutic/taskflow-api/internal/middleware"
	"github.com/BuzzLyutic/taskflow-api/internal/model"
	"github.com/BuzzLyutic/taskflow-api/internal/repo"
	"github.com/BuzzLyutic/taskflow-api/internal/service"
	"github.com/BuzzLyutic/taskflow-api/internal/token"
)

// setupE2EServer собирает полный роутер так же, как main
func setupE2EServer(t *testing.T) (*httptest.Server, func()) {
	pool, cleanup := SetupTestDB(t)

	logger := zap.NewNop()
	tokens := token.NewService("e2e-access-secret", "e2e-refresh-secret", 15*time.Minute, 7*24*time.Hour)

	userRepo := repo.NewUserRepo(pool)
	taskRepo := repo.NewTaskRepo(pool)

	authService := service.NewAuthService(userRepo, tokens)
	taskService := service.NewTaskService(taskRepo)

	authHandler := handler.NewAuthHandler(authService, logger, false, 7*24*time.Hour)
	taskHandler := handler.NewTaskHandler(taskService, logger)
	guard := middleware.NewGuard(tokens)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Get("/", taskHandler.List)
		r.Post("/", taskHandler.Create)
		r.Get("/stats", taskHandler.Stats)
		r.Get("/{id}", taskHandler.Get)
		r.Patch("/{id}", taskHandler.Update)
		r.Delete("/{id}", taskHandler.Delete)
		r.Patch("/{id}/toggle", taskHandler.ToggleStatus)
	})

	server := httptest.NewServer(r)

	return server, func() {
		server.Close()
		cleanup()
	}
}

// apiClient хранит cookie (refresh-сессию) и access-токен между вызовами
type apiClient struct {
	t           *testing.T
	base        string
	http        *http.Client
	accessToken string
}

func newAPIClient(t *testing.T, base string) *apiClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: base, http: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path string, payload interface{}) (*http.Response, []byte) {
	c.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, raw
}

func (c *apiClient) register(email, password, name string) {
	c.t.Helper()
	resp, raw := c.do(http.MethodPost, "/auth/register", map[string]string{
		"email": email, "password": password, "name": name,
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(raw))
}

func (c *apiClient) login(email, password string) {
	c.t.Helper()
	resp, raw := c.do(http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(c.t, http.StatusOK, resp.StatusCode, string(raw))

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(c.t, json.Unmarshal(raw, &body))
	require.NotEmpty(c.t, body.AccessToken)
	c.accessToken = body.AccessToken
}

func (c *apiClient) createTask(title string) model.Task {
	c.t.Helper()
	resp, raw := c.do(http.MethodPost, "/tasks", map[string]string{"title": title})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(raw))

	var task model.Task
	require.NoError(c.t, json.Unmarshal(raw, &task))
	return task
}

func TestE2E_FullUserJourney(t *testing.T) {
	server, cleanup := setupE2EServer(t)
	defer cleanup()

	client := newAPIClient(t, server.URL)

	// Без токена задачи недоступны
	resp, _ := client.do(http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	client.register("journey@example.com", "secret123", "Journey User")
	client.login("journey@example.com", "secret123")

	// Создаем 25 задач и листаем третью страницу
	for i := 1; i <= 25; i++ {
		client.createTask(fmt.Sprintf("Task %d", i))
	}

	resp, raw := client.do(http.MethodGet, "/tasks?page=3&limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listResp struct {
		Tasks      []model.Task     `json:"tasks"`
		Pagination model.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(raw, &listResp))
	assert.Len(t, listResp.Tasks, 5)
	assert.Equal(t, 25, listResp.Pagination.Total)
	assert.Equal(t, 3, listResp.Pagination.TotalPages)

	// Поиск по подстроке
	resp, raw = client.do(http.MethodGet, "/tasks?search=task+2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &listResp))
	// Task 2, 20..25
	assert.Equal(t, 7, listResp.Pagination.Total)

	// Toggle переводит PENDING в COMPLETED
	task := client.createTask("Toggle Target")
	resp, raw = client.do(http.MethodPatch, "/tasks/"+task.ID.String()+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var toggled model.Task
	require.NoError(t, json.Unmarshal(raw, &toggled))
	assert.Equal(t, model.StatusCompleted, toggled.Status)

	// Частичное обновление: пустая строка затирает описание
	resp, raw = client.do(http.MethodPatch, "/tasks/"+task.ID.String(), map[string]string{"description": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated model.Task
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.Equal(t, "", updated.Description)
	assert.Equal(t, "Toggle Target", updated.Title)

	// Статистика по своим задачам
	resp, raw = client.do(http.MethodGet, "/tasks/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats repo.Stats
	require.NoError(t, json.Unmarshal(raw, &stats))
	assert.Equal(t, 26, stats.TotalTasks)
	assert.Equal(t, 1, stats.ByStatus[model.StatusCompleted])

	// Удаление
	resp, _ = client.do(http.MethodDelete, "/tasks/"+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = client.do(http.MethodGet, "/tasks/"+task.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestE2E_OwnershipIsolation(t *testing.T) {
	server, cleanup := setupE2EServer(t)
	defer cleanup()

	alice := newAPIClient(t, server.URL)
	alice.register("alice@example.com", "secret123", "Alice")
	alice.login("alice@example.com", "secret123")
	aliceTask := alice.createTask("Alice's Task")

	bob := newAPIClient(t, server.URL)
	bob.register("bob@example.com", "secret123", "Bob")
	bob.login("bob@example.com", "secret123")
	bob.createTask("Bob's Task")

	// Чужая задача неотличима от несуществующей
	resp, _ := bob.do(http.MethodGet, "/tasks/"+aliceTask.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = bob.do(http.MethodDelete, "/tasks/"+aliceTask.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = bob.do(http.MethodPatch, "/tasks/"+aliceTask.ID.String(), map[string]string{"title": "Hijacked"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Листинг и статистика видят только свое
	resp, raw := bob.do(http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listResp struct {
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(raw, &listResp))
	require.Len(t, listResp.Tasks, 1)
	assert.Equal(t, "Bob's Task", listResp.Tasks[0].Title)

	// Задача Алисы не пострадала
	resp, _ = alice.do(http.MethodGet, "/tasks/"+aliceTask.ID.String(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_SessionLifecycle(t *testing.T) {
	server, cleanup := setupE2EServer(t)
	defer cleanup()

	client := newAPIClient(t, server.URL)
	client.register("session@example.com", "secret123", "Session User")
	client.login("session@example.com", "secret123")

	// Обмен refresh-cookie на новый access-токен
	resp, raw := client.do(http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshResp map[string]string
	require.NoError(t, json.Unmarshal(raw, &refreshResp))
	require.NotEmpty(t, refreshResp["accessToken"])

	// Новый access-токен рабочий
	client.accessToken = refreshResp["accessToken"]
	resp, _ = client.do(http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Повторный логин замещает сессию: старая cookie мертва
	stale := newAPIClient(t, server.URL)
	stale.http.Jar = client.http.Jar
	client2 := newAPIClient(t, server.URL)
	client2.login("session@example.com", "secret123")

	resp, _ = stale.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logout гасит текущую сессию
	resp, _ = client2.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = client2.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestE2E_IdempotentCreate(t *testing.T) {
	server, cleanup := setupE2EServer(t)
	defer cleanup()

	client := newAPIClient(t, server.URL)
	client.register("idemp@example.com", "secret123", "Idemp User")
	client.login("idemp@example.com", "secret123")

	key := uuid.NewString()
	createWithKey := func() model.Task {
		raw, err := json.Marshal(map[string]string{"title": "Once Only"})
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, server.URL+"/tasks", bytes.NewReader(raw))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+client.accessToken)
		req.Header.Set("Idempotency-Key", key)

		resp, err := client.http.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var task model.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
		return task
	}

	first := createWithKey()
	second := createWithKey()
	assert.Equal(t, first.ID, second.ID)

	resp, raw := client.do(http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listResp struct {
		Pagination model.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(raw, &listResp))
	assert.Equal(t, 1, listResp.Pagination.Total)
}
