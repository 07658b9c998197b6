package worker

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskflow-api/tests"
)

func setRefreshSession(t *testing.T, pool *pgxpool.Pool, email string, expiresAt time.Time) {
	t.Helper()
	userID := tests.CreateTestUser(t, pool, email, "secret123")

	_, err := pool.Exec(context.Background(), `
		UPDATE users SET refresh_token = 'token', refresh_expires_at = $2 WHERE id = $1
	`, userID, expiresAt)
	require.NoError(t, err)
}

func hasRefreshToken(t *testing.T, pool *pgxpool.Pool, email string) bool {
	t.Helper()
	var token *string
	err := pool.QueryRow(context.Background(),
		"SELECT refresh_token FROM users WHERE email = $1", email).Scan(&token)
	require.NoError(t, err)
	return token != nil
}

func TestSweeper_ClearsOnlyExpiredSessions(t *testing.T) {
	pool, cleanup := tests.SetupTestDB(t)
	defer cleanup()

	setRefreshSession(t, pool, "expired@example.com", time.Now().Add(-time.Hour))
	setRefreshSession(t, pool, "live@example.com", time.Now().Add(time.Hour))

	sweeper := NewSweeper(pool, zap.NewNop(), 50*time.Millisecond)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	swept := tests.WaitForCondition(t, 5*time.Second, func() bool {
		return !hasRefreshToken(t, pool, "expired@example.com")
	})
	assert.True(t, swept, "expired session should be cleared")
	assert.True(t, hasRefreshToken(t, pool, "live@example.com"), "live session should survive")
}

func TestSweeper_StopTerminates(t *testing.T) {
	pool, cleanup := tests.SetupTestDB(t)
	defer cleanup()

	sweeper := NewSweeper(pool, zap.NewNop(), 10*time.Millisecond)
	sweeper.Start(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
