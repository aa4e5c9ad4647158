package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/taskflow/orchestrator"
	"github.com/BaSui01/taskflow/types"
)

// Iterator consumes an incremental task run. The run stays Running for the
// whole span of consumption and reaches a terminal state only on
// exhaustion, a final return or an error. Not safe for concurrent Next
// calls.
type Iterator struct {
	eng    *Engine
	task   *Task
	rt     taskRuntime
	params map[string]any

	// ctx is the submission context; it governs the run across all Next
	// calls, including crash detection.
	ctx    context.Context
	id     uuid.UUID
	run    *types.Run
	logger *zap.Logger

	started  bool
	finished bool
	msgs     chan any
	current  any

	// mu guards the outcome fields, written by the drive goroutine and
	// read by the consumer, which may abandon iteration mid-run.
	mu       sync.Mutex
	terminal *types.State
	retval   any
	err      error
}

func (it *Iterator) setOutcome(terminal *types.State, retval any, err error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.terminal = terminal
	it.retval = retval
	if it.err == nil {
		it.err = err
	}
}

// Iterate creates the run record for an incremental task and returns an
// iterator over its increments. The body does not start until the first
// Next call; the cumulative timeout clock starts there too.
func (e *Engine) Iterate(ctx context.Context, task *Task, params map[string]any, opts ...RunOption) (*Iterator, error) {
	if !task.IsGenerator() {
		return nil, types.NewConfigError(
			"task has a single-valued body; execute it via Run, RunState or Submit")
	}

	rt := e.resolveRuntime(task)
	options := applyRunOptions(opts)
	inputs, bodyParams := resolveParams(ctx, params)

	runName := renderRunName(task.spec.RunName, bodyParams)
	if runName == "" {
		runName = task.spec.Name
	}

	spec := orchestrator.RunSpec{
		RunID:      options.runID,
		Name:       runName,
		TaskName:   task.spec.Name,
		TaskInputs: inputs,
	}
	if fc := types.FlowRunFromContext(ctx); fc != nil {
		id := fc.FlowRunID
		spec.FlowRunID = &id
		spec.FlowRunRunCount = fc.RunCount
	}

	run, err := e.client.CreateRun(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logger := e.logger.With(
		zap.String("task", task.spec.Name),
		zap.String("run_id", run.ID.String()))

	if _, run, err = e.propose(ctx, run.ID, types.Pending()); err != nil {
		return nil, err
	}

	return &Iterator{
		eng:    e,
		task:   task,
		rt:     rt,
		params: bodyParams,
		ctx:    ctx,
		id:     run.ID,
		run:    run,
		logger: logger,
		msgs:   make(chan any),
	}, nil
}

// RunID returns the id of the run backing this iterator.
func (it *Iterator) RunID() uuid.UUID { return it.id }

// Next blocks for the next increment. It returns false on exhaustion or
// failure; consult Err afterwards. The context bounds this wait only.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.finished {
		return false
	}
	if !it.started {
		it.started = true
		go it.drive()
	}

	select {
	case v, ok := <-it.msgs:
		if !ok {
			it.finished = true
			return false
		}
		it.current = v
		return true
	case <-ctx.Done():
		it.finished = true
		it.mu.Lock()
		if it.err == nil {
			it.err = ctx.Err()
		}
		it.mu.Unlock()
		return false
	}
}

// Value returns the increment observed by the last successful Next.
func (it *Iterator) Value() any { return it.current }

// Err returns the error that terminated iteration, nil on clean exhaustion.
func (it *Iterator) Err() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.err
}

// ReturnValue returns the body's final return, distinct from the yielded
// increments. Valid only after Next has returned false without error.
func (it *Iterator) ReturnValue() any {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.retval
}

// State returns the terminal state, nil while the run is still consuming.
func (it *Iterator) State() *types.State {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.terminal
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect(ctx context.Context) ([]any, error) {
	var out []any
	for it.Next(ctx) {
		out = append(out, it.Value())
	}
	return out, it.Err()
}

// drive runs the attempt loop on its own goroutine, streaming increments to
// the consumer. A retry restarts the body from scratch and re-emits every
// prior increment; there is no checkpoint. The timeout deadline is fixed
// once, here, and spans all attempts.
func (it *Iterator) drive() {
	defer close(it.msgs)

	e := it.eng
	outer := it.ctx
	bodyBase := outer
	var cancel context.CancelFunc
	if it.rt.timeout > 0 {
		bodyBase, cancel = context.WithTimeout(outer, it.rt.timeout)
		defer cancel()
	}

	attempt := 1
	for {
		if cerr := outer.Err(); cerr != nil {
			st, crashErr := e.crashOut(outer, it.run.ID, cerr, it.logger)
			it.setOutcome(st, nil, crashErr)
			return
		}

		desired := types.Running()
		if attempt > 1 {
			desired = types.Retrying()
		}
		accepted, freshRun, err := e.propose(outer, it.run.ID, desired)
		if err != nil {
			it.setOutcome(nil, nil, err)
			return
		}
		if accepted.Type != desired.Type && accepted.IsTerminal() {
			it.setOutcome(accepted, nil, terminalError(accepted))
			return
		}
		it.run = freshRun

		retval, bodyErr := it.runOnce(bodyBase)

		if bodyErr == nil {
			ref, perr := e.persistResult(outer, it.rt, it.rt.storageKey, it.run, retval)
			if perr != nil {
				bodyErr = perr
			} else {
				completed := types.Completed(ref)
				completed.Result = retval
				completed.ResultAvailable = true
				accepted, freshRun, err := e.propose(outer, it.run.ID, completed)
				if err != nil {
					it.setOutcome(nil, nil, err)
					return
				}
				accepted.Result = retval
				accepted.ResultAvailable = true
				it.setOutcome(accepted, retval, nil)
				e.recordRun(it.task.spec.Name, string(accepted.Type), freshRun.TotalRunTime)
				return
			}
		}

		if types.Classify(bodyErr) == types.SeverityCrash {
			st, crashErr := e.crashOut(outer, it.run.ID, bodyErr, it.logger)
			it.setOutcome(st, nil, crashErr)
			return
		}

		if it.rt.policy.ShouldRetry(attempt) {
			delay := it.rt.policy.DelayFor(attempt)
			it.logger.Debug("incremental attempt failed, replaying from the start",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(bodyErr))
			if delay > 0 {
				if _, _, err := e.propose(outer, it.run.ID, types.AwaitingRetry(delay)); err != nil {
					it.setOutcome(nil, nil, err)
					return
				}
				select {
				case <-time.After(delay):
				case <-outer.Done():
					st, crashErr := e.crashOut(outer, it.run.ID, outer.Err(), it.logger)
					it.setOutcome(st, nil, crashErr)
					return
				}
			}
			e.recordRetry(it.task.spec.Name)
			attempt++
			continue
		}

		failed := types.Failed(bodyErr)
		accepted, freshRun, err = e.propose(outer, it.run.ID, failed)
		if err != nil {
			it.setOutcome(nil, nil, err)
			return
		}
		it.setOutcome(accepted, nil, bodyErr)
		e.recordRun(it.task.spec.Name, string(accepted.Type), freshRun.TotalRunTime)
		return
	}
}

// runOnce executes one full pass of the generator body, streaming yields to
// the consumer. Yield fails once the timeout or submission context is done,
// which is the cooperative cancellation point for bodies between yields.
func (it *Iterator) runOnce(bodyBase context.Context) (any, error) {
	e := it.eng

	bodyCtx := types.WithTaskRun(bodyBase, &types.TaskRunContext{
		Run:       it.run,
		Parent:    types.TaskRunFromContext(it.ctx),
		StartTime: time.Now(),
	})

	yield := func(v any) error {
		// Checked first so a yield after teardown fails deterministically
		// even when a consumer is ready to receive.
		if err := bodyCtx.Err(); err != nil {
			return err
		}
		select {
		case it.msgs <- v:
			return nil
		case <-bodyCtx.Done():
			return bodyCtx.Err()
		}
	}

	e.runStarted(it.task.spec.Name)
	defer e.runFinished(it.task.spec.Name)

	retval, err := func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task body panicked: %v", r)
			}
		}()
		return it.task.spec.Generator(bodyCtx, it.params, yield)
	}()

	if err != nil && it.rt.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return nil, types.NewTimeoutError(it.rt.timeout.Seconds())
	}
	return retval, err
}
