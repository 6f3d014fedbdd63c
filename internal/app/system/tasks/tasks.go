// internal/app/system/tasks/tasks.go

// Package tasks runs periodic background jobs on their own tickers.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// runTimeout bounds a single execution of a job.
const runTimeout = 30 * time.Second

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives a set of jobs until stopped.
type Runner struct {
	jobs   []Job
	logger *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRunner creates a Runner for the given jobs.
func NewRunner(logger *zap.Logger, jobs ...Job) *Runner {
	return &Runner{
		jobs:   jobs,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start launches one goroutine per job.
func (r *Runner) Start() {
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.run(job)
		r.logger.Info("background job started",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval))
	}
}

// Stop signals all jobs to stop and waits for them to finish.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("background jobs stopped")
}

func (r *Runner) run(job Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOnce(job)
		}
	}
}

func (r *Runner) runOnce(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		r.logger.Error("background job failed",
			zap.String("job", job.Name),
			zap.Error(err))
	}
}
