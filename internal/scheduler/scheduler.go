package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/unclebandit/darb-backend/internal/quota"
)

// Reliever runs one eviction pass over the local store.
type Reliever interface {
	Relieve(ctx context.Context) (quota.Report, error)
}

// Scheduler sweeps the local store on a cron spec so pressure built up by
// fallback writes is relieved even when no request triggers it.
type Scheduler struct {
	cron     *cron.Cron
	reliever Reliever
	spec     string
	logger   zerolog.Logger
}

func New(spec string, reliever Reliever, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		reliever: reliever,
		spec:     spec,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.Sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Msg("⏰ quota sweep scheduled")
	return nil
}

// Sweep runs one pass immediately.
func (s *Scheduler) Sweep() {
	report, err := s.reliever.Relieve(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("⚠️ quota sweep could not relieve local storage")
		return
	}
	s.logger.Debug().
		Str("level", report.Level.String()).
		Int64("used", report.Used).
		Int64("capacity", report.Capacity).
		Msg("quota sweep finished")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
