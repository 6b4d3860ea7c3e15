// Package pipeline wires steps together and runs hooks around them.
package pipeline

import (
	"context"
	"time"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
)

// Pipeline executes a sequence of Steps with hook support. Steps run strictly
// in order; the first failure aborts the rest and nothing is retried.
type Pipeline struct {
	steps []core.Step
	hooks []core.Hook
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{} }

// Use appends a step to the pipeline.  Returns the same Pipeline for chaining.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// AddHook registers an observer.
func (p *Pipeline) AddHook(h ...core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h...)
	return p
}

// Len returns the number of steps.
func (p *Pipeline) Len() int { return len(p.steps) }

// Run executes the pipeline on h.  It returns the final handle and a map of
// per-step timing observations. On failure the handle may already carry the
// mutations of the steps that succeeded.
func (p *Pipeline) Run(ctx context.Context, h core.Handle) (core.Handle, map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(p.steps))
	current := h

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, timings, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}

		result, elapsed, err := p.runStep(ctx, step, current)
		timings[step.Name()] = elapsed
		if err != nil {
			return nil, timings, err
		}
		current = result
	}
	return current, timings, nil
}

func (p *Pipeline) runStep(ctx context.Context, step core.Step, h core.Handle) (core.Handle, time.Duration, error) {
	p.callHooksBefore(ctx, step.Name(), h)

	start := time.Now()
	result, err := step.Execute(ctx, h)
	elapsed := time.Since(start)

	p.callHooksAfter(ctx, step.Name(), result, elapsed, err)
	return result, elapsed, err
}

func (p *Pipeline) callHooksBefore(ctx context.Context, name string, h core.Handle) {
	for _, hk := range p.hooks {
		hk.BeforeStep(ctx, name, h)
	}
}

func (p *Pipeline) callHooksAfter(ctx context.Context, name string, h core.Handle, d time.Duration, err error) {
	for _, hk := range p.hooks {
		hk.AfterStep(ctx, name, h, d, err)
	}
}

// Clone returns a shallow copy of the pipeline so templates can be reused
// safely across goroutines.
func (p *Pipeline) Clone() *Pipeline {
	cp := &Pipeline{
		steps: make([]core.Step, len(p.steps)),
		hooks: make([]core.Hook, len(p.hooks)),
	}
	copy(cp.steps, p.steps)
	copy(cp.hooks, p.hooks)
	return cp
}
