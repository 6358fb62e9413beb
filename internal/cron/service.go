package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
	Now        func() time.Time
}

// JobOutcome is how one job fared in a cycle.
type JobOutcome struct {
	Job      string
	Duration time.Duration
	Err      error
}

// CycleReport summarizes one pass over the selected jobs. Skipped is set
// when another run held the pricing lock.
type CycleReport struct {
	StartedAt time.Time
	Skipped   bool
	Jobs      []JobOutcome
}

// Failed counts jobs that returned an error.
func (r CycleReport) Failed() int {
	n := 0
	for _, job := range r.Jobs {
		if job.Err != nil {
			n++
		}
	}
	return n
}

// Service runs the pricing jobs on a fixed cadence. Every cycle holds the
// pricing lock, so a cycle never overlaps an HTTP-triggered run, and jobs
// run in registry order even when an earlier one fails.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{byName: map[string]Job{}}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: params.JobTimeout,
		now:        now,
	}, nil
}

// Run executes a cycle immediately and then once per interval until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// RunOnce executes the named jobs (all when none are named) in a single
// locked cycle.
func (s *Service) RunOnce(ctx context.Context, names ...string) (CycleReport, error) {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return CycleReport{}, err
	}
	return s.runCycle(ctx, jobs)
}

func (s *Service) tick(ctx context.Context) {
	report, err := s.runCycle(ctx, s.registry.Jobs())
	if err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
		return
	}
	if failed := report.Failed(); failed > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", failed), "scheduled run finished with failures")
	}
}

func (s *Service) runCycle(ctx context.Context, jobs []Job) (CycleReport, error) {
	report := CycleReport{StartedAt: s.now().UTC()}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another pricing run holds the lock; skipping this cycle")
		s.metrics.IncSkipped()
		report.Skipped = true
		return report, nil
	}
	stop := keepAlive(ctx, s.lock, s.logg)
	defer func() {
		stop()
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		report.Jobs = append(report.Jobs, s.runJob(ctx, job))
	}
	s.logg.Info(ctx, "scheduled run complete")
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) JobOutcome {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	outcome := JobOutcome{Job: name, Duration: time.Since(start), Err: err}

	s.metrics.ObserveRun(name, outcome.Duration, err)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": outcome.Duration.Milliseconds(),
		"outcome":     metrics.Outcome(err),
	})
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return outcome
	}
	s.logg.Info(jobCtx, "job completed")
	return outcome
}
