// Package scheduler runs background maintenance jobs on fixed intervals:
// preference rebuilds, history backfill, and pruning.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slotwise/slotwise/internal/logging"
)

// Handler is the function executed for a job
type Handler func(ctx context.Context) error

// Job is a recurring unit of work
type Job struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
	Handler  Handler       `json:"-"`

	LastRun    *time.Time `json:"last_run,omitempty"`
	RunCount   int64      `json:"run_count"`
	ErrorCount int64      `json:"error_count"`
	LastError  string     `json:"last_error,omitempty"`
}

// Runner owns the job loops. Jobs run on their own goroutines; Stop
// cancels them and waits for in-flight handlers to return.
type Runner struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *logging.Logger
}

// NewRunner creates an empty runner
func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
		log:    logging.WithField("component", "scheduler"),
	}
}

// Register adds a job. If the runner is already started the job's loop
// begins immediately; the first run happens after one interval.
func (r *Runner) Register(job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.Handler == nil {
		return fmt.Errorf("job handler is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job interval must be positive")
	}
	if job.Timeout == 0 {
		job.Timeout = 5 * time.Minute
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job already registered: %s", job.ID)
	}
	r.jobs[job.ID] = job

	if r.started {
		r.startJob(job)
	}
	return nil
}

// Start launches all registered job loops
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}
	r.started = true

	for _, job := range r.jobs {
		r.startJob(job)
	}
	r.log.WithField("jobs", len(r.jobs)).Info("scheduler started")
	return nil
}

// Stop cancels all job loops and waits for them to finish
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info("scheduler stopped")
}

// RunNow executes a job immediately, outside its interval
func (r *Runner) RunNow(ctx context.Context, id string) error {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	r.execute(ctx, job)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if job.LastError != "" {
		return fmt.Errorf("job %s: %s", id, job.LastError)
	}
	return nil
}

func (r *Runner) startJob(job *Job) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(job.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.execute(r.ctx, job)
			}
		}
	}()
}

func (r *Runner) execute(ctx context.Context, job *Job) {
	r.mu.RLock()
	timeout := job.Timeout
	r.mu.RUnlock()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := job.Handler(execCtx)

	now := time.Now()
	r.mu.Lock()
	job.LastRun = &now
	job.RunCount++
	if err != nil {
		job.ErrorCount++
		job.LastError = err.Error()
	} else {
		job.LastError = ""
	}
	r.mu.Unlock()

	if err != nil {
		r.log.WithFields(map[string]interface{}{
			"job":   job.ID,
			"error": err.Error(),
		}).Warn("job run failed")
	} else {
		r.log.WithField("job", job.ID).Debug("job run completed")
	}
}

// Stats summarizes runner state
type Stats struct {
	Started     bool  `json:"started"`
	TotalJobs   int   `json:"total_jobs"`
	TotalRuns   int64 `json:"total_runs"`
	TotalErrors int64 `json:"total_errors"`
}

// GetStats returns aggregate counters across all jobs
func (r *Runner) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Started: r.started, TotalJobs: len(r.jobs)}
	for _, job := range r.jobs {
		stats.TotalRuns += job.RunCount
		stats.TotalErrors += job.ErrorCount
	}
	return stats
}

// Jobs returns a snapshot of all jobs for inspection
func (r *Runner) Jobs() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out
}
