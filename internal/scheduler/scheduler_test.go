package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		job  *Job
	}{
		{name: "missing id", job: &Job{Interval: time.Second, Handler: func(context.Context) error { return nil }}},
		{name: "missing handler", job: &Job{ID: "a", Interval: time.Second}},
		{name: "zero interval", job: &Job{ID: "a", Handler: func(context.Context) error { return nil }}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRunner().Register(tt.job); err == nil {
				t.Error("Register accepted an invalid job")
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRunner()
	job := func() *Job {
		return &Job{ID: "dup", Interval: time.Second, Handler: func(context.Context) error { return nil }}
	}
	if err := r.Register(job()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(job()); err == nil {
		t.Error("Register accepted a duplicate job ID")
	}
}

func TestRunnerExecutesOnInterval(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner()
	err := r.Register(&Job{
		ID:       "tick",
		Interval: 10 * time.Millisecond,
		Handler: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopHaltsJobs(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner()
	r.Register(&Job{
		ID:       "tick",
		Interval: 5 * time.Millisecond,
		Handler: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	r.Start()
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Errorf("job kept running after Stop: %d -> %d", after, runs.Load())
	}
}

func TestRunNow(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner()
	r.Register(&Job{
		ID:       "manual",
		Interval: time.Hour,
		Handler: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	if err := r.RunNow(context.Background(), "manual"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if err := r.RunNow(context.Background(), "missing"); err == nil {
		t.Error("RunNow accepted an unknown job")
	}
}

func TestRunNowSurfacesHandlerError(t *testing.T) {
	r := NewRunner()
	r.Register(&Job{
		ID:       "failing",
		Interval: time.Hour,
		Handler: func(context.Context) error {
			return fmt.Errorf("boom")
		},
	})

	if err := r.RunNow(context.Background(), "failing"); err == nil {
		t.Error("RunNow swallowed the handler error")
	}

	stats := r.GetStats()
	if stats.TotalErrors != 1 || stats.TotalRuns != 1 {
		t.Errorf("stats = %+v, want 1 run and 1 error", stats)
	}
}

func TestStats(t *testing.T) {
	r := NewRunner()
	r.Register(&Job{ID: "a", Interval: time.Hour, Handler: func(context.Context) error { return nil }})
	r.Register(&Job{ID: "b", Interval: time.Hour, Handler: func(context.Context) error { return nil }})

	stats := r.GetStats()
	if stats.Started {
		t.Error("Started = true before Start")
	}
	if stats.TotalJobs != 2 {
		t.Errorf("TotalJobs = %d, want 2", stats.TotalJobs)
	}

	r.RunNow(context.Background(), "a")
	if got := r.GetStats().TotalRuns; got != 1 {
		t.Errorf("TotalRuns = %d, want 1", got)
	}

	jobs := r.Jobs()
	if len(jobs) != 2 {
		t.Errorf("Jobs returned %d entries, want 2", len(jobs))
	}
}
