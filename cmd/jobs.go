package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"altotrafico-web/internal/config"
	"altotrafico-web/internal/hubspot"
	"altotrafico-web/internal/logger"
	"altotrafico-web/internal/ratelimit"
	"altotrafico-web/internal/scheduler"
	"altotrafico-web/internal/telemetry"
	"altotrafico-web/models"
)

const blogWarmLimit = 20

type postFetcher interface {
	FetchPosts(ctx context.Context, limit, offset int) (*models.BlogPage, error)
}

// scheduleMaintenance registers the limiter sweep and, when the blog cache is
// enabled, a warm-up that refetches the front page once per TTL.
func scheduleMaintenance(sched *scheduler.Scheduler, cfg *config.Config, limiter *ratelimit.Limiter, blog postFetcher, metrics *telemetry.Metrics) error {
	if err := sched.ScheduleSweep(scheduler.TagLoginSweep, cfg.LoginSweepInterval, scheduler.SweepFunc(func() int {
		removed := limiter.Sweep()
		metrics.RecordSweep(removed)
		return removed
	})); err != nil {
		return fmt.Errorf("schedule limiter sweep: %w", err)
	}

	if cfg.BlogCacheTTL <= 0 {
		logger.Info("blog cache disabled, skipping warm-up job")
		return nil
	}
	if err := sched.ScheduleInterval(scheduler.TagBlogWarm, cfg.BlogCacheTTL, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := blog.FetchPosts(ctx, blogWarmLimit, 0); err != nil && !errors.Is(err, hubspot.ErrNotConfigured) {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("schedule blog warm-up: %w", err)
	}
	return nil
}
