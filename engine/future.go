package engine

import (
	"context"

	"github.com/BaSui01/taskflow/types"
)

// Future is a handle on a run executing in the background.
type Future struct {
	eng   *Engine
	done  chan struct{}
	state *types.State
	err   error
}

// Submit starts task in the background and returns immediately. The run
// drives the same state machine as Run; only the calling convention
// differs. The context governs the whole run: cancelling it crashes an
// in-flight run.
func (e *Engine) Submit(ctx context.Context, task *Task, params map[string]any, opts ...RunOption) (*Future, error) {
	if task.IsGenerator() {
		return nil, types.NewConfigError(
			"incremental tasks produce no single state until exhaustion; consume them via Iterate")
	}

	f := &Future{eng: e, done: make(chan struct{})}
	options := applyRunOptions(opts)
	go func() {
		defer close(f.done)
		f.state, f.err = e.execute(ctx, task, params, options)
	}()
	return f, nil
}

// Wait blocks until the run reaches a terminal state and returns it. Like
// RunState, body failures are carried by the state, crashes by the error.
// The context bounds the wait only, not the run.
func (f *Future) Wait(ctx context.Context) (*types.State, error) {
	select {
	case <-f.done:
		return f.state, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until terminal and unwraps the value, re-surfacing the
// body's original error on failure.
func (f *Future) Result(ctx context.Context) (any, error) {
	st, err := f.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return f.eng.Result(ctx, st)
}
