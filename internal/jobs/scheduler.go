// AngelaMos | 2026
// scheduler.go

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/angelamos/consultancy-api/internal/config"
)

const (
	tokenCleanupLock = "jobs:lock:token_cleanup"
	jobTimeout       = 2 * time.Minute
)

type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, retention time.Duration) (int64, error)
}

// Locker is satisfied by *core.Redis.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	LockHolder(ctx context.Context, key string) (string, error)
}

type Scheduler struct {
	cron   *cron.Cron
	locker Locker
	purger TokenPurger
	cfg    config.JobsConfig
	logger *slog.Logger
}

func NewScheduler(
	cfg config.JobsConfig,
	purger TokenPurger,
	locker Locker,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		locker: locker,
		purger: purger,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.TokenCleanupSpec, s.cleanupTokens); err != nil {
		return fmt.Errorf("schedule token cleanup: %w", err)
	}

	s.cron.Start()
	s.logger.Info("job scheduler started",
		"token_cleanup", s.cfg.TokenCleanupSpec,
	)
	return nil
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("job scheduler stop timed out")
	}
}

func (s *Scheduler) cleanupTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if !s.acquire(ctx, tokenCleanupLock) {
		return
	}

	purged, err := s.purger.PurgeExpiredTokens(ctx, s.cfg.TokenRetention)
	if err != nil {
		s.logger.Error("token cleanup failed", "error", err)
		return
	}

	s.logger.Info("token cleanup finished", "purged", purged)
}

// acquire lets one replica run a job per tick. Without a locker every
// replica runs it; the job is idempotent.
func (s *Scheduler) acquire(ctx context.Context, key string) bool {
	if s.locker == nil {
		return true
	}

	ok, err := s.locker.TryLock(ctx, key, jobTimeout)
	if err != nil {
		s.logger.Warn("job lock unavailable", "job", key, "error", err)
		return true
	}
	if !ok {
		holder, _ := s.locker.LockHolder(ctx, key)
		s.logger.Debug("job skipped", "job", key, "holder", holder)
	}
	return ok
}
