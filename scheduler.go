package gauntlet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Scheduler triggers the registered run callback once, or periodically in
// watch mode.
type Scheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	callback func() error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A zero interval means run-once mode.
func NewScheduler(interval time.Duration, logger log.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		runOnce:  interval == 0,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback to be called when a run is due.
func (s *Scheduler) RegisterCallback(callback func() error) {
	s.callback = callback
}

// Start runs the callback immediately. In run-once mode it returns the
// callback's error; in watch mode it launches the periodic loop and reports
// per-iteration failures through the log only, since a failing run must not
// stop the watch.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.running.Store(true)

	if s.runOnce {
		s.logger.Debug("starting scheduler in run-once mode")
		return s.callback()
	}

	s.logger.Info("starting scheduler in watch mode", "interval", s.interval)

	if err := s.callback(); err != nil {
		s.logger.Error("run failed", "err", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-time.After(s.interval):
				if !s.running.Load() {
					return
				}
				s.logger.Info("starting scheduled run")
				if err := s.callback(); err != nil {
					s.logger.Error("run failed", "err", err)
				}

			case <-s.done:
				return

			case <-ctx.Done():
				s.running.Store(false)
				return
			}
		}
	}()

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	close(s.done)
}

// Stopped returns true if the scheduler is stopped.
func (s *Scheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the periodic loop has terminated or the
// context expires.
func (s *Scheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for scheduler to stop", "err", ctx.Err())
		return ctx.Err()
	}
}
