package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/taskflow/types"
)

// KindStateChange is the single event kind the engine produces.
const KindStateChange = "task-run.state-change"

// Event is one lifecycle notification.
type Event struct {
	Kind       string     `json:"kind"`
	OccurredAt time.Time  `json:"occurred_at"`
	RunID      uuid.UUID  `json:"run_id"`
	TaskName   string     `json:"task_name"`
	RunName    string     `json:"run_name,omitempty"`
	FlowRunID  *uuid.UUID `json:"flow_run_id,omitempty"`

	StateID   uuid.UUID       `json:"state_id"`
	StateType types.StateType `json:"state_type"`
	StateName string          `json:"state_name"`
	Message   string          `json:"message,omitempty"`
	RunCount  int             `json:"run_count"`
}

// StateChange builds the event for an accepted transition.
func StateChange(run *types.Run, st *types.State) Event {
	return Event{
		Kind:       KindStateChange,
		OccurredAt: st.Timestamp,
		RunID:      run.ID,
		TaskName:   run.TaskName,
		RunName:    run.Name,
		FlowRunID:  run.FlowRunID,
		StateID:    st.ID,
		StateType:  st.Type,
		StateName:  st.Name,
		Message:    st.Message,
		RunCount:   run.RunCount,
	}
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(ev Event)
}

// NopEmitter discards everything.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Event) {}
