package optimizer

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
)

// Job is one file to optimize and write back.
type Job struct {
	Source      string
	Destination string // "" overwrites Source
	Quality     int
}

// JobResult is the outcome of a Job.
type JobResult struct {
	Job      Job
	Format   core.Format
	Animated bool
	Duration time.Duration
	Err      error
}

// Batch runs optimize-and-write jobs on a bounded worker pool. Every job
// opens its own handle, so no handle is ever shared between workers.
type Batch struct {
	orch    *Orchestrator
	pool    pond.ResultPool[JobResult]
	timeout time.Duration

	processed int64
	failed    int64
}

// BatchOption customises a Batch.
type BatchOption func(*Batch)

// WithJobTimeout bounds each job. Zero means no limit.
func WithJobTimeout(d time.Duration) BatchOption {
	return func(b *Batch) { b.timeout = d }
}

// NewBatch creates a Batch with the given number of workers; workers <= 0
// uses runtime.NumCPU(). Call Stop when done.
func NewBatch(o *Orchestrator, workers int, opts ...BatchOption) *Batch {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	b := &Batch{
		orch: o,
		pool: pond.NewResultPool[JobResult](workers),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run processes jobs concurrently and returns one result per job, in input
// order. A failing job does not affect the others.
func (b *Batch) Run(ctx context.Context, jobs []Job) []JobResult {
	tasks := make([]pond.Result[JobResult], len(jobs))
	for i, job := range jobs {
		tasks[i] = b.pool.SubmitErr(func() (JobResult, error) {
			res := b.process(ctx, job)
			return res, res.Err
		})
	}

	results := make([]JobResult, len(jobs))
	for i, task := range tasks {
		res, err := task.Wait()
		if err != nil && res.Err == nil {
			// The pool itself failed the task (stopped or panicked).
			res = JobResult{Job: jobs[i], Err: apperrors.Wrap(apperrors.CategoryPipeline, "batch", err)}
		}
		if res.Err != nil {
			atomic.AddInt64(&b.failed, 1)
		} else {
			atomic.AddInt64(&b.processed, 1)
		}
		results[i] = res
	}
	return results
}

func (b *Batch) process(ctx context.Context, job Job) JobResult {
	start := time.Now()
	res := JobResult{Job: job}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	backend := b.orch.Backend()
	h, err := backend.Open(job.Source)
	if err != nil {
		res.Err = apperrors.Backend("batch.open", err)
		res.Duration = time.Since(start)
		return res
	}
	defer backend.Release(h)

	if res.Animated, err = b.orch.IsAnimated(h); err != nil {
		res.Err = err
	} else if res.Format, err = b.orch.GetFormat(h); err != nil {
		res.Err = err
	} else if _, err = b.orch.Optimize(ctx, h, job.Quality); err != nil {
		res.Err = err
	} else if _, err = b.orch.Write(ctx, h, job.Destination); err != nil {
		res.Err = err
	}
	res.Duration = time.Since(start)
	return res
}

// Stop waits for running jobs and shuts the pool down.
func (b *Batch) Stop() { b.pool.StopAndWait() }

// Processed returns the number of jobs that completed successfully.
func (b *Batch) Processed() int64 { return atomic.LoadInt64(&b.processed) }

// Failed returns the number of jobs that returned an error.
func (b *Batch) Failed() int64 { return atomic.LoadInt64(&b.failed) }
