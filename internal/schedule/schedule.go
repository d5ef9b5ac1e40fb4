// Package schedule runs the recurring maintenance jobs: nightly master
// memory regeneration and periodic search index rebuilds.
package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bowerhall/recall/internal/logger"
)

type Scheduler struct {
	c *cron.Cron
}

func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	return &Scheduler{c: cron.New(cron.WithLocation(loc))}, nil
}

// Add registers a job under a standard 5-field cron spec. The job runs with
// panic protection and duration logging; overlapping runs are the job's own
// problem.
func (s *Scheduler) Add(spec, name string, job func() error) error {
	_, err := s.c.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("scheduled job panicked", "job", name, "panic", r)
			}
		}()

		start := time.Now()
		logger.Info("scheduled job starting", "job", name)

		if err := job(); err != nil {
			logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}

		logger.Info("scheduled job finished", "job", name, "duration", time.Since(start).Round(time.Millisecond))
	})

	return err
}

func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}
