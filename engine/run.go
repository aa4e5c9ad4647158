package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/taskflow/cache"
	"github.com/BaSui01/taskflow/events"
	"github.com/BaSui01/taskflow/orchestrator"
	"github.com/BaSui01/taskflow/retry"
	"github.com/BaSui01/taskflow/types"
)

// taskRuntime is the per-invocation view of a task spec with engine
// defaults folded in.
type taskRuntime struct {
	policy     retry.Policy
	timeout    time.Duration
	persist    bool
	bridge     *cache.Bridge
	storageKey string
}

func (e *Engine) resolveRuntime(task *Task) taskRuntime {
	spec := task.spec

	retries := e.defaults.DefaultRetries
	if spec.Retries != nil {
		retries = *spec.Retries
	}
	delay := spec.RetryDelay
	if delay.IsZero() && e.defaults.DefaultRetryDelay > 0 {
		delay = retry.Fixed(e.defaults.DefaultRetryDelay)
	}
	jitter := spec.RetryJitter
	if jitter == 0 {
		jitter = e.defaults.DefaultRetryJitter
	}
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = e.defaults.DefaultTimeout
	}

	cachingConfigured := spec.CachePolicy != nil || spec.ResultStorageKey != ""
	persist := e.defaults.PersistResults || cachingConfigured
	if spec.PersistResult != nil {
		persist = *spec.PersistResult
	}

	store := e.store
	if spec.ResultStore != nil {
		store = spec.ResultStore
	}

	return taskRuntime{
		policy:     retry.Policy{MaxRetries: retries, Delay: delay, JitterFactor: jitter},
		timeout:    timeout,
		persist:    persist,
		bridge:     cache.NewBridge(store, spec.CacheExpiration, e.logger),
		storageKey: spec.ResultStorageKey,
	}
}

// resolveParams splits call parameters into upstream linkage and the plain
// values the body sees. Parameters carrying another run's result are
// recorded under their own name and unwrapped. The nearest enclosing task
// run, if any, lands under the reserved parents key; flow contexts are a
// different context type and stay transparent.
func resolveParams(ctx context.Context, params map[string]any) (map[string][]types.RunReference, map[string]any) {
	inputs := make(map[string][]types.RunReference)
	body := make(map[string]any, len(params))

	for k, v := range params {
		switch rr := v.(type) {
		case types.RunResult:
			inputs[k] = append(inputs[k], types.RunReference{ID: rr.RunID})
			body[k] = rr.Value
		case *types.RunResult:
			inputs[k] = append(inputs[k], types.RunReference{ID: rr.RunID})
			body[k] = rr.Value
		default:
			body[k] = v
		}
	}

	if tr := types.TaskRunFromContext(ctx); tr != nil && tr.Run != nil {
		inputs[types.ParentsInputKey] = []types.RunReference{{ID: tr.Run.ID}}
	}

	if len(inputs) == 0 {
		inputs = nil
	}
	return inputs, body
}

// propose submits a transition, refreshes the run aggregate and emits the
// lifecycle event for the accepted state.
func (e *Engine) propose(ctx context.Context, runID uuid.UUID, desired *types.State) (*types.State, *types.Run, error) {
	accepted, err := e.client.ProposeState(ctx, runID, desired)
	if err != nil {
		return nil, nil, fmt.Errorf("propose %s: %w", desired.Type, err)
	}
	run, err := e.client.ReadRun(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("read run after %s: %w", accepted.Type, err)
	}
	e.emitter.Emit(events.StateChange(run, accepted))
	return accepted, run, nil
}

// computeCacheKey resolves the cache fingerprint for this invocation; empty
// disables the cache short-circuit. A pinned storage key always wins.
func (e *Engine) computeCacheKey(ctx context.Context, task *Task, bodyParams map[string]any) (string, error) {
	if task.spec.ResultStorageKey != "" {
		return task.spec.ResultStorageKey, nil
	}
	if task.spec.CachePolicy == nil {
		return "", nil
	}

	input := &cache.KeyInput{
		TaskName:   task.spec.Name,
		Parameters: bodyParams,
	}
	if fc := types.FlowRunFromContext(ctx); fc != nil {
		input.FlowParameters = fc.Parameters
	}
	key, err := task.spec.CachePolicy.ComputeKey(ctx, input)
	if err != nil {
		return "", fmt.Errorf("compute cache key for %s: %w", task.spec.Name, err)
	}
	return key, nil
}

// execute drives the full state machine for one run of a single-valued
// task. The returned error is non-nil only for crashes, configuration
// errors and infrastructure failures; body failures live on the state.
func (e *Engine) execute(ctx context.Context, task *Task, params map[string]any, options runOptions) (*types.State, error) {
	rt := e.resolveRuntime(task)
	inputs, bodyParams := resolveParams(ctx, params)

	runName := renderRunName(task.spec.RunName, bodyParams)
	if runName == "" {
		runName = task.spec.Name
	}

	var flowID *uuid.UUID
	flowCount := 0
	if fc := types.FlowRunFromContext(ctx); fc != nil {
		id := fc.FlowRunID
		flowID = &id
		flowCount = fc.RunCount
	}

	run, err := e.client.CreateRun(ctx, orchestrator.RunSpec{
		RunID:           options.runID,
		Name:            runName,
		TaskName:        task.spec.Name,
		FlowRunID:       flowID,
		FlowRunRunCount: flowCount,
		TaskInputs:      inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	logger := e.logger.With(
		zap.String("task", task.spec.Name),
		zap.String("run_id", run.ID.String()))

	if _, run, err = e.propose(ctx, run.ID, types.Pending()); err != nil {
		return nil, err
	}

	// Engine setup past Pending but before Running: a failure here is a
	// crash with no execution window, so no end_time.
	key, err := e.computeCacheKey(ctx, task, bodyParams)
	if err != nil {
		return e.crashOut(ctx, run.ID, err, logger)
	}

	if key != "" {
		if hit, ok := rt.bridge.Lookup(ctx, key); ok {
			e.recordCacheHit(task.spec.Name)
			desired := types.CachedHit(hit.Ref, key)
			desired.Result = hit.Value
			desired.ResultAvailable = true
			accepted, freshRun, err := e.propose(ctx, run.ID, desired)
			if err != nil {
				return nil, err
			}
			accepted.Result = hit.Value
			accepted.ResultAvailable = true
			logger.Debug("cache hit, execution skipped", zap.String("cache_key", key))
			e.recordRun(task.spec.Name, string(accepted.Type), freshRun.TotalRunTime)
			return accepted, nil
		}
		e.recordCacheMiss(task.spec.Name)
	}

	attempt := 1
	for {
		if cerr := ctx.Err(); cerr != nil {
			return e.crashOut(ctx, run.ID, cerr, logger)
		}

		desired := types.Running()
		if attempt > 1 {
			desired = types.Retrying()
		}
		accepted, freshRun, err := e.propose(ctx, run.ID, desired)
		if err != nil {
			return nil, err
		}
		if accepted.Type != desired.Type {
			logger.Warn("transition rewritten by orchestrator",
				zap.String("desired", string(desired.Type)),
				zap.String("accepted", string(accepted.Type)))
			if accepted.IsTerminal() {
				return accepted, terminalError(accepted)
			}
		}
		run = freshRun

		value, bodyErr := e.runAttempt(ctx, task, rt, bodyParams, run, attempt)

		if bodyErr == nil {
			ref, perr := e.persistResult(ctx, rt, key, run, value)
			if perr != nil {
				// Persistence failures count as attempt failures: the run
				// has no durable result to complete with.
				bodyErr = perr
			} else {
				completed := types.Completed(ref)
				completed.Result = value
				completed.ResultAvailable = true
				accepted, freshRun, err := e.propose(ctx, run.ID, completed)
				if err != nil {
					return nil, err
				}
				accepted.Result = value
				accepted.ResultAvailable = true
				e.recordRun(task.spec.Name, string(accepted.Type), freshRun.TotalRunTime)
				return accepted, nil
			}
		}

		if types.Classify(bodyErr) == types.SeverityCrash {
			return e.crashOut(ctx, run.ID, bodyErr, logger)
		}

		if rt.policy.ShouldRetry(attempt) {
			delay := rt.policy.DelayFor(attempt)
			logger.Debug("attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(bodyErr))
			if delay > 0 {
				if _, _, err := e.propose(ctx, run.ID, types.AwaitingRetry(delay)); err != nil {
					return nil, err
				}
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return e.crashOut(ctx, run.ID, ctx.Err(), logger)
				}
			}
			e.recordRetry(task.spec.Name)
			attempt++
			continue
		}

		failed := types.Failed(bodyErr)
		accepted, freshRun, err = e.propose(ctx, run.ID, failed)
		if err != nil {
			return nil, err
		}
		accepted.Err = bodyErr
		logger.Warn("run failed",
			zap.Int("attempts", attempt),
			zap.Error(bodyErr))
		e.recordRun(task.spec.Name, string(accepted.Type), freshRun.TotalRunTime)
		return accepted, nil
	}
}

// runAttempt executes one attempt of the body under the timeout supervisor,
// with the run context pushed for dependency tracking and a span around the
// attempt.
func (e *Engine) runAttempt(ctx context.Context, task *Task, rt taskRuntime, bodyParams map[string]any, run *types.Run, attempt int) (any, error) {
	ctx, span := e.tracer.Start(ctx, "task.attempt", trace.WithAttributes(
		attribute.String("task.name", task.spec.Name),
		attribute.String("run.id", run.ID.String()),
		attribute.Int("run.attempt", attempt),
	))
	defer span.End()

	e.runStarted(task.spec.Name)
	defer e.runFinished(task.spec.Name)

	value, err := e.supervise(ctx, rt, run, func(bodyCtx context.Context) (any, error) {
		return task.spec.Fn(bodyCtx, bodyParams)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return value, err
}

// supervise bounds body by the runtime timeout. The body executes on its
// own goroutine; cancellation of a blocking body is best-effort, the
// goroutine keeps running until it observes its context. A caller-context
// cancellation surfaces as the context error so the classifier can treat
// teardown as a crash.
func (e *Engine) supervise(ctx context.Context, rt taskRuntime, run *types.Run, body func(context.Context) (any, error)) (any, error) {
	bodyCtx := types.WithTaskRun(ctx, &types.TaskRunContext{
		Run:       run,
		Parent:    types.TaskRunFromContext(ctx),
		StartTime: time.Now(),
	})

	var cancel context.CancelFunc
	if rt.timeout > 0 {
		bodyCtx, cancel = context.WithTimeout(bodyCtx, rt.timeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("task body panicked: %v", r)}
			}
		}()
		v, err := body(bodyCtx)
		done <- outcome{value: v, err: err}
	}()

	var timeoutC <-chan time.Time
	if rt.timeout > 0 {
		timer := time.NewTimer(rt.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case out := <-done:
		if rt.timeout > 0 && out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, types.NewTimeoutError(rt.timeout.Seconds())
		}
		return out.value, out.err
	case <-timeoutC:
		return nil, types.NewTimeoutError(rt.timeout.Seconds())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// persistResult writes the value when persistence is on. The cache key, a
// pinned storage key or the run id names the record, in that order.
func (e *Engine) persistResult(ctx context.Context, rt taskRuntime, key string, run *types.Run, value any) (*types.ResultRef, error) {
	if !rt.persist {
		return nil, nil
	}
	storageKey := key
	if storageKey == "" {
		storageKey = rt.storageKey
	}
	if storageKey == "" {
		storageKey = run.ID.String()
	}
	ref, err := rt.bridge.Persist(ctx, storageKey, value)
	if err != nil {
		return nil, fmt.Errorf("persist result: %w", err)
	}
	return ref, nil
}

// crashOut records the crash terminal state and surfaces the crash error.
// The proposal runs on an uncancelable context so a torn-down caller still
// leaves a durable record.
func (e *Engine) crashOut(ctx context.Context, runID uuid.UUID, cause error, logger *zap.Logger) (*types.State, error) {
	crashed := types.Crashed(cause)
	accepted, freshRun, err := e.propose(context.WithoutCancel(ctx), runID, crashed)
	if err != nil {
		logger.Error("failed to record crash", zap.Error(err))
		accepted = crashed
	} else if freshRun != nil {
		e.recordRun(freshRun.TaskName, string(accepted.Type), freshRun.TotalRunTime)
	}
	if accepted.Err == nil {
		accepted.Err = cause
	}
	logger.Warn("run crashed", zap.Error(cause))
	return accepted, crashError(accepted)
}

// terminalError maps an adopted terminal state to the error surfaced to the
// caller: crashes re-raise, everything else is carried by the state.
func terminalError(st *types.State) error {
	if st.IsCrashed() {
		return crashError(st)
	}
	return nil
}

func (e *Engine) recordRun(task, state string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordRun(task, state, d)
	}
}

func (e *Engine) recordRetry(task string) {
	if e.metrics != nil {
		e.metrics.RecordRetry(task)
	}
}

func (e *Engine) runStarted(task string) {
	if e.metrics != nil {
		e.metrics.RunStarted(task)
	}
}

func (e *Engine) runFinished(task string) {
	if e.metrics != nil {
		e.metrics.RunFinished(task)
	}
}

func (e *Engine) recordCacheHit(task string) {
	if e.metrics != nil {
		e.metrics.RecordCacheHit(task)
	}
}

func (e *Engine) recordCacheMiss(task string) {
	if e.metrics != nil {
		e.metrics.RecordCacheMiss(task)
	}
}
