package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Job is one step of a pricing run.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

var ErrUnknownJob = errors.New("unknown cron job")

// Registry keeps jobs in run order. Job names are unique so a single step
// can be selected by name.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register appends job after the existing ones. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return errors.New("cron job name is required")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.byName[name] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the jobs in run order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Select returns the named jobs in registry order, not argument order, so
// expiry never runs ahead of a sync. No names selects every job.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		return r.Jobs(), nil
	}
	want := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
		}
		want[name] = true
	}
	selected := make([]Job, 0, len(want))
	for _, job := range r.jobs {
		if want[job.Name()] {
			selected = append(selected, job)
		}
	}
	return selected, nil
}
