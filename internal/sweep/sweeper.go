// Package sweep runs the scheduled retention pass that archives old
// completed records.
package sweep

import (
	"context"
	"fmt"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/peytonb/inboxtasks/internal/store"
)

// Sweeper archives completed records older than the retention window
// on a cron schedule. Active records are never touched.
type Sweeper struct {
	store    store.Store
	window   time.Duration
	schedule string
	log      *zap.SugaredLogger

	cron *cronv3.Cron
}

// New creates a sweeper. schedule is a cron spec ("@every 1h" style
// works); window is the minimum age, measured from completed_at, before
// a record is archived.
func New(st store.Store, window time.Duration, schedule string, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		store:    st,
		window:   window,
		schedule: schedule,
		log:      log,
	}
}

// Start registers the sweep job and starts the scheduler. A run that
// overlaps the previous one is skipped rather than stacked.
func (s *Sweeper) Start() error {
	c := cronv3.New(cronv3.WithChain(
		cronv3.SkipIfStillRunning(cronv3.DiscardLogger),
		cronv3.Recover(cronv3.DiscardLogger),
	))

	if _, err := c.AddFunc(s.schedule, s.runOnce); err != nil {
		return fmt.Errorf("registering sweep job %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.log.Infow("retention sweeper started",
		"schedule", s.schedule, "window", s.window)
	return nil
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// SweepNow runs a single retention pass immediately and returns the
// number of records archived.
func (s *Sweeper) SweepNow(ctx context.Context) (int, error) {
	n, err := s.store.ArchiveOlderThan(ctx, s.window)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	return n, nil
}

func (s *Sweeper) runOnce() {
	n, err := s.SweepNow(context.Background())
	if err != nil {
		s.log.Errorw("retention sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Infow("retention sweep archived records", "count", n)
	}
}
