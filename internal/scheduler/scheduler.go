package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RunFunc performs one sync pass.
type RunFunc func(ctx context.Context) error

// Scheduler drives periodic sync runs off a cron timetable. Only one
// schedule is active at a time; Apply replaces the previous one.
type Scheduler struct {
	cron    *cron.Cron
	run     RunFunc
	timeout time.Duration
	entry   cron.EntryID
	running chan struct{}
}

func New(run RunFunc, timeout time.Duration) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		run:     run,
		timeout: timeout,
		running: make(chan struct{}, 1),
	}
	s.cron.Start()
	return s
}

// Apply installs the schedule matching the current settings. With
// autoSync off any existing schedule is removed.
func (s *Scheduler) Apply(autoSync bool, frequency string) {
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	if !autoSync {
		log.Info().Msg("auto sync disabled")
		return
	}

	spec := cronSpec(frequency)
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		log.Error().Err(err).Str("spec", spec).Msg("schedule rejected")
		return
	}
	s.entry = id
	log.Info().Str("frequency", frequency).Str("spec", spec).Msg("auto sync scheduled")
}

// tick runs a single sync pass, skipping when the previous one is
// still in flight.
func (s *Scheduler) tick() {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	default:
		log.Warn().Msg("sync still running, skipping scheduled pass")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.run(ctx); err != nil {
		log.Error().Err(err).Msg("scheduled sync failed")
	}
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func cronSpec(frequency string) string {
	switch frequency {
	case "daily":
		return "@daily"
	case "monthly":
		return "@monthly"
	default:
		return "@weekly"
	}
}
