package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/taskflow/cache"
	"github.com/BaSui01/taskflow/config"
	"github.com/BaSui01/taskflow/events"
	"github.com/BaSui01/taskflow/internal/metrics"
	"github.com/BaSui01/taskflow/orchestrator"
	"github.com/BaSui01/taskflow/results"
	"github.com/BaSui01/taskflow/types"
)

// Options wires the engine's collaborators. Nil fields fall back to
// in-process defaults suitable for embedded use and tests.
type Options struct {
	// Client is the state transition authority.
	Client orchestrator.Client

	// Results is the default result store; tasks may override per spec.
	Results results.Store

	// Emitter receives one event per accepted transition. Must not block.
	Emitter events.Emitter

	// Metrics is optional Prometheus instrumentation.
	Metrics *metrics.Collector

	Logger *zap.Logger

	// Defaults applies when a task spec leaves a knob unset.
	Defaults config.EngineConfig
}

// Engine executes tasks. Safe for concurrent use; distinct runs execute
// without any engine-global lock.
type Engine struct {
	client   orchestrator.Client
	store    results.Store
	emitter  events.Emitter
	metrics  *metrics.Collector
	logger   *zap.Logger
	tracer   trace.Tracer
	defaults config.EngineConfig
}

// New creates an engine. Missing collaborators default to the in-memory
// orchestrator, the in-memory result store and a discard emitter.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = orchestrator.NewMemoryClient(logger)
	}
	store := opts.Results
	if store == nil {
		store = results.NewMemoryStore()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NopEmitter{}
	}

	return &Engine{
		client:   client,
		store:    store,
		emitter:  emitter,
		metrics:  opts.Metrics,
		logger:   logger.With(zap.String("component", "engine")),
		tracer:   otel.Tracer("taskflow/engine"),
		defaults: opts.Defaults,
	}
}

// Client exposes the orchestrator for run record inspection.
func (e *Engine) Client() orchestrator.Client { return e.client }

// RunOption adjusts a single invocation.
type RunOption func(*runOptions)

type runOptions struct {
	runID uuid.UUID
}

// WithRunID pins the created run's id instead of assigning one.
func WithRunID(id uuid.UUID) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// Run executes task to its terminal state and unwraps the value: the cached
// or computed result on success, the body's original error on failure, a
// crash-coded error on crash.
func (e *Engine) Run(ctx context.Context, task *Task, params map[string]any, opts ...RunOption) (any, error) {
	st, err := e.RunState(ctx, task, params, opts...)
	if err != nil {
		return nil, err
	}
	return e.Result(ctx, st)
}

// RunState executes task to its terminal state and returns the state handle.
// Body failures are not re-raised, the Failed state carries them; crashes
// and configuration errors are.
func (e *Engine) RunState(ctx context.Context, task *Task, params map[string]any, opts ...RunOption) (*types.State, error) {
	if task.IsGenerator() {
		return nil, types.NewConfigError(
			"incremental tasks produce no single state until exhaustion; consume them via Iterate")
	}
	options := applyRunOptions(opts)
	st, err := e.execute(ctx, task, params, options)
	if err != nil {
		return st, err
	}
	return st, nil
}

// Result resolves the value behind a terminal state: the persisted or
// in-process result for successful states, the original error for Failed,
// a crash-coded error for Crashed, and a missing-result error when nothing
// was persisted and the value is not held in-process.
func (e *Engine) Result(ctx context.Context, st *types.State) (any, error) {
	if st == nil {
		return nil, types.NewConfigError("nil state has no result")
	}
	switch {
	case st.IsCrashed():
		return nil, crashError(st)
	case st.IsFailed():
		if st.Err != nil {
			return nil, st.Err
		}
		return nil, fmt.Errorf("task run failed: %s", st.Message)
	case st.ResultAvailable:
		return st.Result, nil
	case st.ResultRef != nil:
		bridge := cache.NewBridge(e.store, nil, e.logger)
		value, err := bridge.Retrieve(ctx, st.ResultRef)
		if err != nil {
			return nil, fmt.Errorf("retrieve result %q: %w", st.ResultRef.StorageKey, err)
		}
		return value, nil
	default:
		return nil, types.NewMissingResult(
			"state " + string(st.Type) + " persisted no result; enable persistence to retrieve it later")
	}
}

func applyRunOptions(opts []RunOption) runOptions {
	var options runOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// crashError surfaces a Crashed state as an error. Already-tagged crashes
// pass through; bare causes such as a context cancellation are wrapped so the
// caller always sees the abort code with the original cause underneath.
func crashError(st *types.State) error {
	if st.Err != nil {
		if types.GetErrorCode(st.Err) == types.ErrExecutionAborted {
			return st.Err
		}
		return types.NewCrash(st.Err)
	}
	return types.NewError(types.ErrExecutionAborted, st.Message)
}
