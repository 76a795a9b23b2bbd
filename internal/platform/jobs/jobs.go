// Package jobs runs the server's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Pruner drops records created before the cutoff and reports how many went.
type Pruner interface {
	Prune(before time.Time) int
}

type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	now    func() time.Time
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func NewScheduler(logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		logger: logger,
		now:    time.Now,
	}
}

// AddPrune schedules p to drop everything older than retention.
func (s *Scheduler) AddPrune(name, schedule string, p Pruner, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("%s: retention must be positive", name)
	}
	_, err := s.cron.AddFunc(schedule, func() { s.prune(name, p, retention) })
	if err != nil {
		return fmt.Errorf("%s: invalid schedule %q: %w", name, schedule, err)
	}
	s.logger.Info().Str("job", name).Str("schedule", schedule).Dur("retention", retention).Msg("job scheduled")
	return nil
}

func (s *Scheduler) prune(name string, p Pruner, retention time.Duration) int {
	cutoff := s.now().Add(-retention)
	n := p.Prune(cutoff)
	s.logger.Info().Str("job", name).Int("removed", n).Time("cutoff", cutoff).Msg("prune finished")
	return n
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
