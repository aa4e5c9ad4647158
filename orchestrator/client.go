package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/BaSui01/taskflow/types"
)

// RunSpec describes a run to create. The first state is not part of the
// spec; the engine proposes Pending immediately after creation.
type RunSpec struct {
	// RunID optionally pins the new run's id; zero means assign one.
	RunID uuid.UUID

	Name     string
	TaskName string

	FlowRunID       *uuid.UUID
	FlowRunRunCount int

	TaskInputs map[string][]types.RunReference
}

// Client is the narrow contract the engine consumes. Implementations must
// order transitions per run: an accepted write happens-before the next
// proposal for the same run id is examined.
type Client interface {
	// CreateRun durably creates a run record and returns a copy of it.
	CreateRun(ctx context.Context, spec RunSpec) (*types.Run, error)

	// ProposeState submits a desired transition and returns the accepted
	// state. The accepted state may differ from the desired one; callers
	// must continue with the accepted state, never the desired one.
	ProposeState(ctx context.Context, runID uuid.UUID, desired *types.State) (*types.State, error)

	// ReadRun returns a copy of the current run aggregate.
	ReadRun(ctx context.Context, runID uuid.UUID) (*types.Run, error)

	// ReadRunStates returns the run's full state history in order.
	ReadRunStates(ctx context.Context, runID uuid.UUID) ([]*types.State, error)
}
