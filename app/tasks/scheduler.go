package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-actions/app/database"
)

var _ UpdateSchedulerInterface = (*Scheduler)(nil)

// RunResult is the outcome of the most recent finished pass.
type RunResult struct {
	Report     *Report
	Err        error
	FinishedAt time.Time
}

// Scheduler runs an update pass at start and then once per interval.
// Passes never overlap; RunNow waits for a running pass to finish.
type Scheduler struct {
	store    *database.Store
	fetcher  Fetcher
	matcher  FilterMatcher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	runMu sync.Mutex

	lastMu  sync.RWMutex
	last    RunResult
	hasLast bool
}

func NewScheduler(store *database.Store, fetcher Fetcher, matcher FilterMatcher, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:    store,
		fetcher:  fetcher,
		matcher:  matcher,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runScheduled()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runScheduled()
			}
		}
	}()

	slog.Info("Scheduler started", "interval", s.interval.String())
}

// Stop ends the loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// RunNow runs a pass immediately, after any pass already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (*Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	task := NewUpdateTask(s.store, s.fetcher, s.matcher)
	report, err := task.Execute(ctx)

	s.lastMu.Lock()
	s.last = RunResult{Report: report, Err: err, FinishedAt: time.Now()}
	s.hasLast = true
	s.lastMu.Unlock()

	return report, err
}

// Last returns the most recent pass, or false before the first one ends.
func (s *Scheduler) Last() (RunResult, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last, s.hasLast
}

func (s *Scheduler) runScheduled() {
	// A pass is never cut short, so it gets its own context.
	if _, err := s.RunNow(context.WithoutCancel(s.ctx)); err != nil {
		slog.Error("Update pass failed", "error", err)
	}
}
