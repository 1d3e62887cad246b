// Package jobs runs periodic background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LeaderboardRefresher reloads a cached leaderboard snapshot.
type LeaderboardRefresher interface {
	Refresh(ctx context.Context, limit int) error
}

// Scheduler keeps the leaderboard cache warm between matches.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger.Named("jobs"),
		timeout: 10 * time.Second,
	}
}

// ScheduleLeaderboardRefresh registers a refresh of the top-size snapshot on spec
// (standard cron or descriptors such as "@every 1m").
func (s *Scheduler) ScheduleLeaderboardRefresh(spec string, size int, lb LeaderboardRefresher) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.RefreshLeaderboard(lb, size)
	})
	if err != nil {
		return fmt.Errorf("schedule leaderboard refresh %q: %w", spec, err)
	}
	return nil
}

// RefreshLeaderboard runs one refresh; failures are logged and retried on the next tick.
func (s *Scheduler) RefreshLeaderboard(lb LeaderboardRefresher, size int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := lb.Refresh(ctx, size); err != nil {
		s.logger.Warn("leaderboard refresh failed", zap.Error(err))
		return
	}
	s.logger.Debug("leaderboard refreshed", zap.Int("size", size))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
