package types

import (
	"time"

	"github.com/google/uuid"
)

// ParentsInputKey is the reserved task-input key holding direct-caller
// linkage. It contains at most one entry: the nearest enclosing task run.
const ParentsInputKey = "__parents__"

// RunReference links a task input to the run that produced it.
type RunReference struct {
	ID uuid.UUID `json:"id"`
}

// RunResult wraps a call parameter with the id of the run that produced its
// value. The engine records the linkage under the parameter name and hands
// the body the unwrapped Value.
type RunResult struct {
	RunID uuid.UUID
	Value any
}

// Run is the mutable aggregate describing one durable task run. The
// state_id/state_type/state_name triple is a denormalized copy of the latest
// state, maintained by the orchestrator on every accepted transition.
type Run struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	TaskName string    `json:"task_name"`

	StateID   uuid.UUID `json:"state_id"`
	StateType StateType `json:"state_type"`
	StateName string    `json:"state_name"`
	State     *State    `json:"state,omitempty"`

	// RunCount is the attempt counter: 1 on the first Running transition,
	// incremented on every accepted Retrying transition.
	RunCount int `json:"run_count"`

	// FlowRunID and FlowRunRunCount are copied from the enclosing flow run
	// context at creation and fixed for the run's lifetime.
	FlowRunID       *uuid.UUID `json:"flow_run_id,omitempty"`
	FlowRunRunCount int        `json:"flow_run_run_count,omitempty"`

	TaskInputs map[string][]RunReference `json:"task_inputs,omitempty"`

	// StartTime is set exactly once, at the first transition into Running.
	StartTime *time.Time `json:"start_time,omitempty"`
	// EndTime is set exactly once, at the terminal transition. It stays unset
	// when the run crashes before ever reaching Running.
	EndTime           *time.Time `json:"end_time,omitempty"`
	ExpectedStartTime *time.Time `json:"expected_start_time,omitempty"`

	// TotalRunTime spans from the first Running timestamp to the terminal
	// timestamp, retries included. Zero while the run is in progress.
	TotalRunTime time.Duration `json:"total_run_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParent reports whether the run recorded a direct-caller linkage.
func (r *Run) HasParent() bool {
	return len(r.TaskInputs[ParentsInputKey]) > 0
}

// Clone returns a deep copy of the run. The orchestrator hands out clones so
// callers cannot mutate stored records.
func (r *Run) Clone() *Run {
	cp := *r
	if r.TaskInputs != nil {
		cp.TaskInputs = make(map[string][]RunReference, len(r.TaskInputs))
		for k, refs := range r.TaskInputs {
			cp.TaskInputs[k] = append([]RunReference(nil), refs...)
		}
	}
	if r.State != nil {
		st := *r.State
		cp.State = &st
	}
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	cp.StartTime = copyTime(r.StartTime)
	cp.EndTime = copyTime(r.EndTime)
	cp.ExpectedStartTime = copyTime(r.ExpectedStartTime)
	if r.FlowRunID != nil {
		id := *r.FlowRunID
		cp.FlowRunID = &id
	}
	return &cp
}
