package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTaskRun contextKey = "task_run_context"
	keyFlowRun contextKey = "flow_run_context"
)

// TaskRunContext is the stack-scoped handle for an executing task run. The
// engine pushes one onto the context chain for the duration of an attempt and
// the caller's context is restored automatically when execution returns.
type TaskRunContext struct {
	// Run is the engine's current view of the run aggregate, refreshed after
	// every accepted state transition.
	Run *Run

	// Parent is the nearest enclosing task run context, used only for
	// lookups. Nil at the top of a call chain.
	Parent *TaskRunContext

	// StartTime is the timestamp of the current attempt's running state.
	StartTime time.Time
}

// FlowRunContext is the ambient flow-level context a task run executes
// under. Flows themselves are outside the engine; tasks only read the flow
// run id, its attempt counter and its call parameters. A flow context is
// transparent for parent tracking: it is never recorded under __parents__.
type FlowRunContext struct {
	FlowRunID  uuid.UUID
	RunCount   int
	Parameters map[string]any
}

// WithTaskRun returns a context with trc pushed as the active task run.
func WithTaskRun(ctx context.Context, trc *TaskRunContext) context.Context {
	return context.WithValue(ctx, keyTaskRun, trc)
}

// TaskRunFromContext extracts the active task run context, nil if absent.
func TaskRunFromContext(ctx context.Context) *TaskRunContext {
	trc, _ := ctx.Value(keyTaskRun).(*TaskRunContext)
	return trc
}

// WithFlowRun returns a context carrying the ambient flow run context.
func WithFlowRun(ctx context.Context, frc *FlowRunContext) context.Context {
	return context.WithValue(ctx, keyFlowRun, frc)
}

// FlowRunFromContext extracts the ambient flow run context, nil if absent.
func FlowRunFromContext(ctx context.Context) *FlowRunContext {
	frc, _ := ctx.Value(keyFlowRun).(*FlowRunContext)
	return frc
}
