// Package scheduler runs ingestion cycles on a timer and on demand, never
// more than one at a time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/ingestion"
	"github.com/valeevte/pricewatch/internal/metrics"
)

var (
	// ErrCycleInProgress is returned when a trigger arrives while a cycle runs.
	ErrCycleInProgress = errors.New("an ingestion cycle is already running")

	// ErrAlreadyRunning is returned when starting a started scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")
)

const DefaultInterval = time.Hour

type Runner interface {
	RunCycle(ctx context.Context, trigger ingestion.Trigger) (ingestion.Summary, error)
}

type Config struct {
	Interval   time.Duration
	RunOnStart bool
}

type Scheduler struct {
	runner Runner
	cfg    Config
	logger *zap.Logger

	// base outlives individual requests; manual cycles run on it.
	base context.Context

	cycleMu sync.Mutex
	inCycle atomic.Bool

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped scheduler. ctx is the process lifecycle context:
// cancelling it aborts any cycle, scheduled or manual.
func New(ctx context.Context, runner Runner, cfg Config, log *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: log,
		base:   ctx,
	}
}

// Start launches the periodic loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(s.base)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("run_on_start", s.cfg.RunOnStart),
	)
	go s.loop(ctx, s.done)
	return nil
}

// Stop ends the loop and waits for a scheduled cycle in flight, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// CycleInProgress reports whether any cycle is executing right now.
func (s *Scheduler) CycleInProgress() bool {
	return s.inCycle.Load()
}

// TriggerNow runs one cycle synchronously on the lifecycle context. It fails
// fast with ErrCycleInProgress instead of queueing behind a running cycle.
func (s *Scheduler) TriggerNow(trigger ingestion.Trigger) (ingestion.Summary, error) {
	return s.run(s.base, trigger)
}

func (s *Scheduler) run(ctx context.Context, trigger ingestion.Trigger) (ingestion.Summary, error) {
	if !s.cycleMu.TryLock() {
		return ingestion.Summary{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	s.inCycle.Store(true)
	metrics.SetCycleInProgress(true)
	defer func() {
		s.inCycle.Store(false)
		metrics.SetCycleInProgress(false)
	}()

	return s.runner.RunCycle(ctx, trigger)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.run(ctx, ingestion.TriggerScheduled)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Warn("skipping scheduled cycle: previous cycle still running")
	case err != nil && ctx.Err() == nil:
		s.logger.Error("scheduled cycle failed", zap.Error(err))
	}
}
