// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Purger removes expired idempotency records. *services.MessageService
// satisfies it.
type Purger interface {
	PurgeExpiredIdempotency(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner for maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration
}

// NewScheduler returns an idle scheduler. Jobs never overlap with themselves.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		log:     log.With().Str("component", "jobs").Logger(),
		timeout: time.Minute,
	}
}

// AddIdempotencyPurge schedules p on spec (standard five-field cron or a
// descriptor such as "@hourly").
func (s *Scheduler) AddIdempotencyPurge(spec string, p Purger) error {
	_, err := s.cron.AddFunc(spec, func() { s.purge(p) })
	return err
}

func (s *Scheduler) purge(p Purger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := p.PurgeExpiredIdempotency(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("idempotency purge failed")
		return
	}
	s.log.Info().Int64("deleted", n).Dur("took", time.Since(start)).Msg("idempotency purge")
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
