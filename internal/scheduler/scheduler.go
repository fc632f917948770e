// Package scheduler runs periodic maintenance jobs (login limiter sweep, blog cache warm-up).
package scheduler

import (
	"time"

	"altotrafico-web/internal/logger"

	"github.com/go-co-op/gocron"
)

const (
	TagLoginSweep = "login-limiter-sweep"
	TagBlogWarm   = "blog-cache-warm"
)

// Sweeper is anything that can drop its expired state, e.g. *ratelimit.Limiter.
type Sweeper interface {
	Sweep() int
}

// SweepFunc adapts a plain function to Sweeper.
type SweepFunc func() int

func (f SweepFunc) Sweep() int { return f() }

// Scheduler manages scheduled jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleInterval schedules a job to run at regular intervals. The first run
// happens one interval after Start.
func (s *Scheduler) ScheduleInterval(tag string, every time.Duration, job func() error) error {
	_, err := s.scheduler.Every(every).Tag(tag).WaitForSchedule().Do(func() {
		if err := job(); err != nil {
			logger.Warn("Scheduled job failed", "tag", tag, "error", err)
		}
	})
	return err
}

// ScheduleSweep registers periodic cleanup of a Sweeper.
func (s *Scheduler) ScheduleSweep(tag string, every time.Duration, sw Sweeper) error {
	return s.ScheduleInterval(tag, every, func() error {
		if removed := sw.Sweep(); removed > 0 {
			logger.Debug("Swept expired entries", "tag", tag, "removed", removed)
		}
		return nil
	})
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// JobCount returns the number of registered jobs
func (s *Scheduler) JobCount() int {
	return len(s.scheduler.Jobs())
}
