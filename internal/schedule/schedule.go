// Package schedule runs the pipeline on a cron schedule. Runs never
// overlap: a tick or manual trigger that arrives while a run is in progress
// is dropped.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Job is one pipeline run.
type Job func(ctx context.Context) error

// Scheduler fires Job on a standard five-field cron spec.
type Scheduler struct {
	spec string
	job  Job
	cron *cron.Cron
	log  *zap.Logger

	running sync.Mutex
	wg      sync.WaitGroup

	mu   sync.Mutex
	base context.Context
	last Result
}

// Result describes the most recent finished run.
type Result struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
	Skipped   int           `json:"skipped"`
	RunCount  int           `json:"run_count"`
	FailCount int           `json:"fail_count"`
}

// New validates spec and returns a stopped scheduler.
func New(spec string, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, eris.New("schedule: job is required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, eris.Wrapf(err, "schedule: invalid spec %q", spec)
	}
	return &Scheduler{
		spec: spec,
		job:  job,
		cron: cron.New(),
		log:  zap.L().With(zap.String("component", "schedule")),
		base: context.Background(),
	}, nil
}

// Run starts the cron loop and blocks until ctx is done, then waits for an
// in-flight run to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.spec, func() { s.TryRun(ctx) }); err != nil {
		return eris.Wrapf(err, "schedule: add %q", s.spec)
	}
	s.cron.Start()
	s.log.Info("schedule: started", zap.String("spec", s.spec))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("schedule: stopped")
	return nil
}

// TryRun runs the job synchronously unless a run is already in progress,
// and reports whether it ran.
func (s *Scheduler) TryRun(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.mu.Lock()
		s.last.Skipped++
		s.mu.Unlock()
		s.log.Warn("schedule: run already in progress, skipping")
		return false
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.running.Unlock()

	s.execute(ctx)
	return true
}

// Trigger starts a run in the background unless one is in progress.
func (s *Scheduler) Trigger() bool {
	if !s.running.TryLock() {
		return false
	}
	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		s.execute(ctx)
	}()
	return true
}

// Last returns the outcome of the most recent finished run.
func (s *Scheduler) Last() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) execute(ctx context.Context) {
	start := time.Now()
	s.log.Info("schedule: run starting")
	err := s.job(ctx)

	s.mu.Lock()
	s.last.StartedAt = start
	s.last.Duration = time.Since(start)
	s.last.Err = err
	s.last.RunCount++
	if err != nil {
		s.last.FailCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("schedule: run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	s.log.Info("schedule: run complete", zap.Duration("duration", time.Since(start)))
}
