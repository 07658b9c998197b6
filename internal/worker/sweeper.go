package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Sweeper периодически чистит протухшие сессии: refresh-токены,
// срок которых вышел, обнуляются прямо в таблице users
type Sweeper struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	stop     chan struct{}
}

func NewSweeper(pool *pgxpool.Pool, logger *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		pool:     pool,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting session sweeper", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Sweeper) Stop() {
	s.logger.Info("Stopping session sweeper...")
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("Session sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("sweep error", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	cmd, err := s.pool.Exec(ctx, `
		UPDATE users
		SET refresh_token = NULL, refresh_expires_at = NULL
		WHERE refresh_expires_at IS NOT NULL AND refresh_expires_at < now()
	`)
	if err != nil {
		return err
	}

	if n := cmd.RowsAffected(); n > 0 {
		s.logger.Info("Swept expired sessions", zap.Int64("count", n))
	}
	return nil
}
