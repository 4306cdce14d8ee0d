// Package schedule runs named jobs on fixed intervals inside the serve
// process. A tick that finds the previous run of the same job still in
// flight is skipped.
package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/metrics"
)

// Job is one recurring task.
type Job struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the job once immediately instead of waiting a full
	// interval for the first tick.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Runner owns the goroutines of its jobs.
type Runner struct {
	jobs    []Job
	metrics *metrics.Metrics
	log     logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewRunner creates an idle Runner. m may be nil.
func NewRunner(m *metrics.Metrics, log logger.Logger) *Runner {
	return &Runner{metrics: m, log: log.Module("schedule")}
}

// Add registers job. It must be called before Start.
func (r *Runner) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("job %s: runner already started", job.Name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Start launches every job. Jobs stop when ctx ends or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.log.Info("scheduler started", logger.Int("jobs", len(r.jobs)))
}

// Stop cancels running jobs and waits for them to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.log.Info("scheduler stopped")
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	var running atomic.Bool
	trigger := func() {
		if !running.CompareAndSwap(false, true) {
			r.log.Warn("previous run still in progress, skipping tick", logger.String("job", job.Name))
			return
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer running.Store(false)
			r.execute(ctx, job)
		}()
	}

	if job.RunOnStart {
		trigger()
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trigger()
		}
	}
}

func (r *Runner) execute(ctx context.Context, job Job) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.PanicRecovered("schedule")
			r.log.Error("job panicked",
				logger.String("job", job.Name),
				logger.Any("panic", p),
				logger.String("stack", string(debug.Stack())))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("job failed",
			logger.String("job", job.Name),
			logger.Duration("duration", time.Since(start)),
			logger.Error(err))
		return
	}
	r.log.Debug("job completed",
		logger.String("job", job.Name),
		logger.Duration("duration", time.Since(start)))
}
