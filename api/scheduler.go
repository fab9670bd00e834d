/*
scheduler.go - Automated annual increment scheduler

PURPOSE:
  Runs the annual step increment batch once per calendar year without an
  operator having to remember it.

DESIGN:
  - Background goroutine with a configurable check interval
  - A check runs the batch only if it has not yet run this calendar year
  - The batch itself skips employees that already carry an Annual ledger
    entry for the year, so a restart mid-year cannot double-increment

USAGE:
  scheduler := NewIncrementScheduler(steps, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunIncrements endpoint (manual batch)
  - engine/steps.go: IncrementAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nbti/promotion-engine/engine"
)

// IncrementScheduler handles the automated annual increment run.
type IncrementScheduler struct {
	Steps         *engine.StepService
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker      *time.Ticker
	stop        chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastRunYear int
}

// NewIncrementScheduler creates a scheduler with a daily check.
func NewIncrementScheduler(steps *engine.StepService, logger *zap.Logger) *IncrementScheduler {
	return &IncrementScheduler{
		Steps:         steps,
		Logger:        logger,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *IncrementScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("increment scheduler disabled, not starting")
		return
	}

	ticker := time.NewTicker(s.CheckInterval)
	s.ticker = ticker
	s.wg.Add(1)
	go s.run(ticker)

	s.Logger.Info("increment scheduler started", zap.Duration("check_interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *IncrementScheduler) Stop() {
	s.mu.Lock()
	ticker := s.ticker
	s.ticker = nil
	s.mu.Unlock()

	if ticker == nil {
		return
	}
	// Release the mutex before waiting: the worker takes it inside
	// checkAndProcess.
	ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.Logger.Info("increment scheduler stopped")
}

// run owns its ticker reference; Stop nils s.ticker only as the
// already-stopped guard and must never be read from here.
func (s *IncrementScheduler) run(ticker *time.Ticker) {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndProcess()

	for {
		select {
		case <-ticker.C:
			s.checkAndProcess()
		case <-s.stop:
			return
		}
	}
}

func (s *IncrementScheduler) checkAndProcess() {
	year := time.Now().Year()

	s.mu.Lock()
	done := s.lastRunYear == year
	s.mu.Unlock()
	if done {
		return
	}

	summary, err := s.Steps.IncrementAll(context.Background(), "")
	if err != nil {
		s.Logger.Error("scheduled increment batch failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastRunYear = year
	s.mu.Unlock()

	s.Logger.Info("scheduled increment batch completed",
		zap.Int("year", year),
		zap.Int("total", summary.Total),
		zap.Int("incremented", summary.Incremented),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
}

// RunNow triggers an immediate check (for testing/admin).
func (s *IncrementScheduler) RunNow() {
	s.checkAndProcess()
}
