// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/pinboard/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Job is a maintenance task run at startup and then every Interval. Each
// run gets its own deadline (timeouts.Batch).
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner runs PinBoard's background jobs, one goroutine per job. Runs of
// the same job never overlap.
type Runner struct {
	logger *zap.Logger
	jobs   []Job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]bool // jobs mid-run, reported on a slow shutdown
}

func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger, active: map[string]bool{}}
}

// Register adds job. Call before Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start launches every registered job.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("background jobs started", zap.Int("jobs", len(r.jobs)))
}

// Stop cancels the jobs and waits for in-flight runs until ctx is done. It
// returns ctx.Err() when a run outlives ctx.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background jobs stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("background jobs still running at shutdown deadline", zap.Strings("jobs", r.activeJobs()))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	r.run(ctx, job)
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.run(ctx, job)
		}
	}
}

func (r *Runner) run(ctx context.Context, job Job) {
	r.setActive(job.Name, true)
	defer r.setActive(job.Name, false)

	runCtx, cancel := context.WithTimeout(ctx, timeouts.Batch())
	defer cancel()

	start := time.Now()
	err := job.Run(runCtx)
	took := time.Since(start)
	switch {
	case err == nil:
		r.logger.Debug("job finished", zap.String("job", job.Name), zap.Duration("took", took))
	case ctx.Err() != nil:
		// Stopped by shutdown.
		r.logger.Debug("job cancelled", zap.String("job", job.Name), zap.Duration("took", took))
	default:
		r.logger.Error("job failed", zap.String("job", job.Name), zap.Duration("took", took), zap.Error(err))
	}
}

func (r *Runner) setActive(name string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.active[name] = true
	} else {
		delete(r.active, name)
	}
}

func (r *Runner) activeJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunOnce runs the named job now, outside its schedule.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("tasks: no job named %q", name)
}
