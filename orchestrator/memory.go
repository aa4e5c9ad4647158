package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/taskflow/types"
)

type memoryRecord struct {
	run    *types.Run
	states []*types.State
}

// MemoryClient is an in-process Client. One mutex serializes all proposals,
// which gives the per-run ordering guarantee trivially.
type MemoryClient struct {
	mu      sync.Mutex
	records map[uuid.UUID]*memoryRecord
	logger  *zap.Logger
}

// NewMemoryClient creates an empty in-memory orchestrator.
func NewMemoryClient(logger *zap.Logger) *MemoryClient {
	return &MemoryClient{
		records: make(map[uuid.UUID]*memoryRecord),
		logger:  logger.With(zap.String("component", "orchestrator_memory")),
	}
}

// CreateRun implements Client.
func (c *MemoryClient) CreateRun(_ context.Context, spec RunSpec) (*types.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := spec.RunID
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, ok := c.records[id]; ok {
		return nil, types.NewError(types.ErrInvalidConfig, "run already exists: "+id.String())
	}

	now := time.Now()
	run := &types.Run{
		ID:              id,
		Name:            spec.Name,
		TaskName:        spec.TaskName,
		FlowRunID:       spec.FlowRunID,
		FlowRunRunCount: spec.FlowRunRunCount,
		TaskInputs:      spec.TaskInputs,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	c.records[id] = &memoryRecord{run: run}

	c.logger.Debug("run created",
		zap.String("run_id", id.String()),
		zap.String("task", spec.TaskName))
	return run.Clone(), nil
}

// ProposeState implements Client. A rejected proposal is not an error: the
// current state comes back as the accepted one and the caller adopts it.
func (c *MemoryClient) ProposeState(_ context.Context, runID uuid.UUID, desired *types.State) (*types.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[runID]
	if !ok {
		return nil, types.NewError(types.ErrInternalError, "unknown run: "+runID.String())
	}

	if !accepts(rec.run.StateType, len(rec.states) > 0, desired.Type) {
		if rec.run.State == nil {
			return nil, types.NewError(types.ErrInvalidTransition,
				"run has no state yet, first proposal must be Pending")
		}
		c.logger.Debug("proposal rejected",
			zap.String("run_id", runID.String()),
			zap.String("current", string(rec.run.StateType)),
			zap.String("desired", string(desired.Type)))
		return rec.run.State.Clone(), nil
	}

	st := desired.Clone()
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.Timestamp.IsZero() {
		st.Timestamp = time.Now()
	}
	st.Details.TaskRunID = runID
	if st.Details.FlowRunID == nil {
		st.Details.FlowRunID = rec.run.FlowRunID
	}

	rec.states = append(rec.states, st)
	apply(rec.run, st, time.Now())

	c.logger.Debug("proposal accepted",
		zap.String("run_id", runID.String()),
		zap.String("state", string(st.Type)))
	return st.Clone(), nil
}

// ReadRun implements Client.
func (c *MemoryClient) ReadRun(_ context.Context, runID uuid.UUID) (*types.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[runID]
	if !ok {
		return nil, types.NewError(types.ErrInternalError, "unknown run: "+runID.String())
	}
	return rec.run.Clone(), nil
}

// ReadRunStates implements Client.
func (c *MemoryClient) ReadRunStates(_ context.Context, runID uuid.UUID) ([]*types.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[runID]
	if !ok {
		return nil, types.NewError(types.ErrInternalError, "unknown run: "+runID.String())
	}
	out := make([]*types.State, len(rec.states))
	for i, st := range rec.states {
		out[i] = st.Clone()
	}
	return out, nil
}
