package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	appLog "roomcal/internal/log"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule. A run that is still in progress
// when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	c       *cron.Cron
	running atomic.Bool
}

// Start validates spec and starts running job on it until ctx is done or
// Stop is called. An empty spec is an error; callers treat it as disabled.
func Start(ctx context.Context, spec string, name string, job Job) (*Scheduler, error) {
	if spec == "" {
		return nil, errors.New("schedule: empty spec")
	}
	if job == nil {
		return nil, errors.New("schedule: nil job")
	}

	s := &Scheduler{c: cron.New()}
	_, err := s.c.AddFunc(spec, func() {
		if !s.running.CompareAndSwap(false, true) {
			appLog.Info("scheduled job still running; skipping tick", "job", name)
			return
		}
		defer s.running.Store(false)

		if err := job(ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job completed", "job", name)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid spec %q: %w", spec, err)
	}

	s.c.Start()
	appLog.Info("scheduler started", "job", name, "spec", spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return s, nil
}

// Stop stops the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// Validate reports whether spec is a valid standard 5-field cron spec.
func Validate(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
