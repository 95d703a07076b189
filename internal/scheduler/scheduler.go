package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc runs on every scheduler tick. Errors are logged, not
// retried; the next tick stands on its own.
type TickFunc func(ctx context.Context) error

// Scheduler owns one timer per registered frequency and exposes
// Start/Stop plus a deterministic Tick for tests. A tick that fires
// while the previous callback is still running is the callback's
// problem: the backup orchestrator drops overlapping runs itself, so
// the scheduler never queues.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *zap.Logger
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type entry struct {
	name     string
	interval time.Duration
	fn       TickFunc

	mu      sync.Mutex
	nextRun time.Time
}

// New creates an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a named schedule. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, fn TickFunc) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cannot register schedule %s while running", name)
	}
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("schedule %s already registered", name)
	}

	s.entries[name] = &entry{name: name, interval: interval, fn: fn}
	return nil
}

// Start launches one timer goroutine per schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, e := range s.entries {
		e.setNextRun(time.Now().Add(e.interval))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(runCtx, e)
		}()

		s.logger.Info("schedule started",
			zap.String("schedule", e.name),
			zap.Duration("interval", e.interval))
	}
	return nil
}

// Stop halts all timers and waits for in-flight callbacks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Tick fires the named schedule immediately. Tests use this instead
// of waiting on wall-clock timers.
func (s *Scheduler) Tick(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown schedule: %s", name)
	}
	return s.fire(ctx, e)
}

// NextRun returns when the named schedule fires next, or zero.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()

	if !ok {
		return time.Time{}
	}
	return e.getNextRun()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.setNextRun(time.Now().Add(e.interval))
			if err := s.fire(ctx, e); err != nil {
				s.logger.Warn("scheduled run failed",
					zap.String("schedule", e.name),
					zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, e *entry) error {
	s.logger.Debug("schedule tick", zap.String("schedule", e.name))
	return e.fn(ctx)
}

func (e *entry) setNextRun(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextRun = t
}

func (e *entry) getNextRun() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextRun
}
