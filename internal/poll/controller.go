// Package poll schedules pipeline runs: periodic ticks plus on-demand
// triggers, with at most one cycle in flight.
package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peytonb/inboxtasks/internal/ingest"
	"github.com/peytonb/inboxtasks/internal/source"
)

// State is the controller's coarse state.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Status is a snapshot of the controller for the status line.
type Status struct {
	State      State
	LastPoll   time.Time
	LastReport ingest.Report
	LastError  error
	AuthFailed bool
}

// Controller runs the pipeline on a fixed interval and on demand. A
// trigger arriving while a cycle is in flight coalesces into a single
// pending follow-up cycle; further triggers are absorbed.
type Controller struct {
	pipeline *ingest.Pipeline
	interval time.Duration
	log      *zap.SugaredLogger

	triggerCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once

	mu      sync.Mutex
	running bool
	status  Status
}

// New creates a controller. interval must be positive.
func New(p *ingest.Pipeline, interval time.Duration, log *zap.SugaredLogger) *Controller {
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	return &Controller{
		pipeline:  p,
		interval:  interval,
		log:       log,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling loop. The first cycle runs immediately.
// Calling Start twice is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.loop(ctx)
}

// Stop halts the polling loop. An in-flight cycle finishes on its own.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// PollNow requests an immediate cycle. If one is already in flight the
// request coalesces into a single pending cycle.
func (c *Controller) PollNow() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
		// A cycle is pending already; nothing to add.
	}
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.runCycle(ctx)

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCycle(ctx)
		case <-c.triggerCh:
			c.runCycle(ctx)
		}
	}
}

// runCycle executes exactly one pipeline run and records the outcome.
// It is only ever called from the loop goroutine, so cycles never
// overlap.
func (c *Controller) runCycle(ctx context.Context) {
	c.setState(Polling)

	report, err := c.pipeline.Run(ctx)

	c.mu.Lock()
	c.status.State = Idle
	c.status.LastPoll = time.Now()
	c.status.LastReport = report
	c.status.LastError = err
	c.status.AuthFailed = err != nil && source.IsAuthError(err)
	c.mu.Unlock()

	if err != nil {
		c.log.Errorw("poll cycle failed", "error", err)
		return
	}

	c.log.Infow("poll cycle finished",
		"fetched", report.Fetched,
		"admitted", report.Admitted,
		"held", report.Held)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.status.State = s
	c.mu.Unlock()
}
