package monitoring

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs background jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates a scheduler whose jobs recover from panics and never
// overlap with a still-running previous invocation. Recover sits inside the
// skip guard so a panicking run still releases it.
func NewScheduler() *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
		),
	}
}

// Add registers job under spec, which accepts the standard five-field syntax
// and descriptors such as "@every 1m".
func (s *Scheduler) Add(name, spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	log.Info().Str("job", name).Str("schedule", spec).Msg("Scheduled background job")
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	log.Info().Msg("Starting background scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		log.Info().Msg("Stopped background scheduler.")
	case <-ctx.Done():
		log.Warn().Msg("Background jobs still running at shutdown")
	}
}

// cronLogger adapts the global zerolog logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
