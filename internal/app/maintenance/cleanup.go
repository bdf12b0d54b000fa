package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/karousn/sftpbridge/internal/errorlog"
	"github.com/karousn/sftpbridge/pkg/logger"
)

const (
	defaultRetentionDays = 90
	defaultSchedule      = "@daily"
)

// Cleaner enforces the retention window on the error log in the
// background. Old records are pruned on a cron schedule and once more
// during shutdown via RunOnce.
type Cleaner struct {
	store     *errorlog.Store
	cron      *cron.Cron
	log       *zap.Logger
	retention int
	schedule  string
	enabled   bool
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithRetentionDays adjusts how long error log records are retained.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSchedule overrides the cron specification for retention enforcement.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil store
// results in a disabled cleaner whose Start and RunOnce do nothing.
func NewCleaner(store *errorlog.Store, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		store:     store,
		retention: defaultRetentionDays,
		schedule:  defaultSchedule,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.store != nil && cleaner.retention > 0

	return cleaner
}

// Start registers the retention job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		start := time.Now()
		removed, err := c.store.CleanupOlderThan(context.Background(), c.retention)
		if err != nil {
			c.log.Warn("error log cleanup failed", zap.Error(err))
			return
		}
		c.log.Debug("error log cleanup finished",
			zap.Int64("removed", removed),
			zap.Duration("elapsed", time.Since(start)))
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes the retention cleanup immediately. Primarily used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !c.enabled {
		return nil
	}

	var errs error
	if _, err := c.store.CleanupOlderThan(ctx, c.retention); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}
