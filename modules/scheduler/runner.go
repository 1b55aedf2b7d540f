package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Job is one periodic task. Fire times lie on the grid Anchor + k*Period.
type Job struct {
	Name   string
	Period time.Duration
	Anchor time.Time
	Run    func(ctx context.Context) error
}

// JobStats is a snapshot of a job's run history.
type JobStats struct {
	Name      string    `json:"name"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastFired time.Time `json:"last_fired,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Next      time.Time `json:"next"`
}

// Runner runs every job on its own goroutine.
type Runner struct {
	jobs   []Job
	logger types.Logger
	now    func() time.Time

	mu      sync.RWMutex
	stats   map[string]*JobStats
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner creates a new Runner.
func NewRunner(logger types.Logger, jobs ...Job) *Runner {
	stats := make(map[string]*JobStats, len(jobs))
	for _, job := range jobs {
		stats[job.Name] = &JobStats{Name: job.Name}
	}
	return &Runner{
		jobs:   jobs,
		logger: logger,
		now:    time.Now,
		stats:  stats,
	}
}

// Start launches the job loops. They stop when Stop is called or ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner is already running")
	}
	r.running = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(runCtx)
	for _, job := range r.jobs {
		g.Go(func() error {
			r.loop(gctx, job)
			return nil
		})
		log.Printf("[scheduler] Started job %s (every %s)", job.Name, job.Period)
	}

	done := r.done
	go func() {
		_ = g.Wait()
		close(done)
	}()
	return nil
}

// Stop cancels the job loops and waits for a running tick to finish.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
		log.Println("[scheduler] All jobs stopped gracefully")
	case <-ctx.Done():
		log.Println("[scheduler] Timeout waiting for jobs to stop")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns true if the runner is running.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Stats returns a snapshot of every job's history.
func (r *Runner) Stats() []JobStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobStats, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *r.stats[job.Name])
	}
	return out
}

// loop fires job at each intended time. The next time is derived from the
// previous intended time, not from when the run finished, and an intended
// time that is not after the last fired one is skipped.
func (r *Runner) loop(ctx context.Context, job Job) {
	next := NextFireTime(r.now(), job.Anchor, job.Period)
	var lastFired time.Time

	timer := time.NewTimer(next.Sub(r.now()))
	defer timer.Stop()

	for {
		r.setNext(job.Name, next)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if next.After(lastFired) {
			lastFired = next
			r.fire(ctx, job, next)
		}

		next = NextFireTime(r.now(), next, job.Period)
		timer.Reset(next.Sub(r.now()))
	}
}

func (r *Runner) fire(ctx context.Context, job Job, intended time.Time) {
	started := r.now()
	err := job.Run(ctx)

	r.mu.Lock()
	s := r.stats[job.Name]
	s.Runs++
	s.LastFired = intended
	s.LastError = ""
	if err != nil {
		s.Failures++
		s.LastError = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("scheduled job failed", "job", job.Name, "intended", intended, "error", err)
		return
	}
	r.logger.Debug("scheduled job finished", "job", job.Name, "intended", intended, "took", r.now().Sub(started))
}

func (r *Runner) setNext(name string, next time.Time) {
	r.mu.Lock()
	r.stats[name].Next = next
	r.mu.Unlock()
}
