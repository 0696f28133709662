package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"voicefeedback/internal/platform/logger"
	"voicefeedback/internal/repository"
)

// RetentionSweeper deletes activation log entries older than the retention period
type RetentionSweeper struct {
	repo repository.ActivationRepo
	days int
	log  *logger.Logger
	now  func() time.Time
	cron *cron.Cron
}

// NewRetentionSweeper creates a sweeper keeping days of activation history
func NewRetentionSweeper(repo repository.ActivationRepo, days int, log *logger.Logger) *RetentionSweeper {
	return &RetentionSweeper{repo: repo, days: days, log: log, now: time.Now}
}

// Start schedules Sweep on a standard 5-field cron expression. An empty
// schedule leaves the sweeper disabled.
func (r *RetentionSweeper) Start(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		r.log.Info("retention sweep disabled (retention.schedule not set)")
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.Sweep(ctx); err != nil {
			r.log.Error("retention sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	r.log.Info("retention sweep scheduled", "cron", schedule, "days", r.days)
	return nil
}

// Stop waits for a running sweep to finish
func (r *RetentionSweeper) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// Sweep deletes everything created before now minus the retention period
func (r *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().AddDate(0, 0, -r.days)
	n, err := r.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.log.Info("retention sweep complete", "deleted", n, "cutoff", cutoff)
	return n, nil
}
