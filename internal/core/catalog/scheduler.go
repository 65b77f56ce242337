package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/markdave123-py/libassist/internal/logger"
)

// Runner is the job the scheduler repeats.
type Runner interface {
	RunSync(ctx context.Context) SyncResult
}

// Scheduler runs a sync immediately on Start and then every interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      logger.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(runner Runner, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, log: log}
}

// Start is a no-op if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("sync interval must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	jobCtx, cancel := context.WithCancel(ctx)
	run := func() { s.runner.RunSync(jobCtx) }

	c := cron.New()
	c.Schedule(cron.Every(s.interval), cron.FuncJob(run))
	c.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run()
	}()

	s.cron, s.cancel = c, cancel
	s.log.Info("catalog sync scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels in-flight runs and waits for them. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done() // waits for scheduled runs
	s.wg.Wait()       // waits for the initial run
	s.log.Info("catalog sync scheduler stopped")
}
