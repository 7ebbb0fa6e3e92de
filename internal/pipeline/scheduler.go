package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-alert-service/internal/observability"
)

// Cycler runs one refresh cycle.
type Cycler interface {
	RunCycle(ctx context.Context) CycleReport
}

// Scheduler runs a Cycler on a fixed interval. At most one cycle is in flight;
// ticks and manual triggers that arrive meanwhile are dropped.
type Scheduler struct {
	cycler   Cycler
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	enabled atomic.Bool
	running atomic.Bool
	toggled chan struct{}
	wg      sync.WaitGroup

	mu  sync.Mutex
	ctx context.Context
}

// NewScheduler creates a Scheduler. A nil clock uses the real clock.
func NewScheduler(cycler Cycler, clock clockwork.Clock, interval time.Duration, enabled bool, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Scheduler{
		cycler:   cycler,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		toggled:  make(chan struct{}, 1),
		ctx:      context.Background(),
	}
	s.enabled.Store(enabled)
	metrics.SchedulerEnabled.Set(boolGauge(enabled))
	return s
}

// Run drives the schedule until ctx is cancelled. When enabled it starts
// with an immediate cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("scheduler started", "interval", s.interval, "enabled", s.enabled.Load())

	var ticker clockwork.Ticker
	var tick <-chan time.Time
	startTicker := func() {
		if ticker == nil {
			ticker = s.clock.NewTicker(s.interval)
			tick = ticker.Chan()
		}
	}
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	if s.enabled.Load() {
		s.launch(ctx, "startup")
		startTicker()
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-tick:
			s.launch(ctx, "tick")
		case <-s.toggled:
			if s.enabled.Load() {
				startTicker()
			} else {
				stopTicker()
			}
		}
	}
}

// Trigger starts a cycle now unless one is already in flight. It reports
// whether a cycle was started.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	return s.launch(ctx, "manual")
}

// Enable resumes periodic cycles.
func (s *Scheduler) Enable() { s.setEnabled(true) }

// Disable stops future ticks. A cycle already in flight runs to completion.
func (s *Scheduler) Disable() { s.setEnabled(false) }

// Enabled reports whether periodic cycles are on.
func (s *Scheduler) Enabled() bool { return s.enabled.Load() }

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Wait blocks until every started cycle has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) setEnabled(on bool) {
	if s.enabled.Swap(on) == on {
		return
	}
	s.metrics.SchedulerEnabled.Set(boolGauge(on))
	s.logger.Info("scheduler toggled", "enabled", on)

	select {
	case s.toggled <- struct{}{}:
	default:
	}
}

func (s *Scheduler) launch(ctx context.Context, trigger string) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.CyclesSkipped.Inc()
		s.logger.Info("cycle in flight, skipping", "trigger", trigger)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.cycler.RunCycle(ctx)
	}()
	return true
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
