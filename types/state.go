package types

import (
	"time"

	"github.com/google/uuid"
)

// StateType identifies a lifecycle state of a task run.
type StateType string

const (
	// StatePending is the initial state, recorded at run creation.
	StatePending StateType = "PENDING"
	// StateRunning is the first executing attempt.
	StateRunning StateType = "RUNNING"
	// StateRetrying is a running-equivalent state for attempts after the first.
	StateRetrying StateType = "RETRYING"
	// StateAwaitingRetry is the delay window between a failed attempt and the
	// next one. Only recorded when a retry delay is configured.
	StateAwaitingRetry StateType = "AWAITING_RETRY"
	// StateCompleted is the successful terminal state.
	StateCompleted StateType = "COMPLETED"
	// StateFailed is the terminal state after the retry budget is exhausted.
	StateFailed StateType = "FAILED"
	// StateCrashed is the terminal state for unrecoverable interrupts.
	StateCrashed StateType = "CRASHED"
	// StateCachedHit is the Completed-equivalent terminal state reached when a
	// live cached result short-circuits execution. Display name is "Cached".
	StateCachedHit StateType = "CACHED"
)

// DisplayName returns the human-readable name for a state type.
func (t StateType) DisplayName() string {
	switch t {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateRetrying:
		return "Retrying"
	case StateAwaitingRetry:
		return "AwaitingRetry"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCrashed:
		return "Crashed"
	case StateCachedHit:
		return "Cached"
	default:
		return string(t)
	}
}

// IsTerminal reports whether no further transitions may follow.
func (t StateType) IsTerminal() bool {
	switch t {
	case StateCompleted, StateFailed, StateCrashed, StateCachedHit:
		return true
	}
	return false
}

// IsRunningEquivalent reports whether an attempt executes under this state.
// Running covers the first attempt, Retrying every later one.
func (t StateType) IsRunningEquivalent() bool {
	return t == StateRunning || t == StateRetrying
}

// IsSuccessful reports whether the state carries a usable result.
func (t StateType) IsSuccessful() bool {
	return t == StateCompleted || t == StateCachedHit
}

// ResultRef points at a persisted result in a result store backend.
type ResultRef struct {
	Backend    string `json:"backend"`
	StorageKey string `json:"storage_key"`
}

// StateDetails carries back-references from a state to its owning records.
type StateDetails struct {
	TaskRunID uuid.UUID  `json:"task_run_id"`
	FlowRunID *uuid.UUID `json:"flow_run_id,omitempty"`
	CacheKey  string     `json:"cache_key,omitempty"`
}

// State is one immutable entry in a run's append-only state history.
type State struct {
	ID        uuid.UUID    `json:"id"`
	Type      StateType    `json:"type"`
	Name      string       `json:"name"`
	Timestamp time.Time    `json:"timestamp"`
	Message   string       `json:"message,omitempty"`
	ResultRef *ResultRef   `json:"result_ref,omitempty"`
	Details   StateDetails `json:"state_details"`

	// Err is the original error carried by Failed/Crashed states so callers
	// receive the body's error, not a wrapper. Never serialized.
	Err error `json:"-"`

	// Result holds the in-process return value for successful states, with
	// ResultAvailable marking it valid (a nil result is legitimate). States
	// read back from the orchestrator have neither; cross-process callers go
	// through ResultRef.
	Result          any  `json:"-"`
	ResultAvailable bool `json:"-"`
}

// NewState creates a state snapshot of the given type with a fresh id,
// the default display name and the current timestamp.
func NewState(t StateType) *State {
	return &State{
		ID:        uuid.New(),
		Type:      t,
		Name:      t.DisplayName(),
		Timestamp: time.Now(),
	}
}

// Pending returns a new Pending state.
func Pending() *State { return NewState(StatePending) }

// Running returns a new Running state.
func Running() *State { return NewState(StateRunning) }

// Retrying returns a new Retrying state.
func Retrying() *State { return NewState(StateRetrying) }

// AwaitingRetry returns a new AwaitingRetry state announcing the delay
// before the next attempt.
func AwaitingRetry(delay time.Duration) *State {
	s := NewState(StateAwaitingRetry)
	s.Message = "retrying in " + delay.String()
	return s
}

// Completed returns a new Completed state referencing the persisted result,
// if any.
func Completed(ref *ResultRef) *State {
	s := NewState(StateCompleted)
	s.ResultRef = ref
	return s
}

// CachedHit returns the Completed-equivalent state for a cache hit.
func CachedHit(ref *ResultRef, key string) *State {
	s := NewState(StateCachedHit)
	s.ResultRef = ref
	s.Details.CacheKey = key
	return s
}

// Failed returns a new Failed state carrying the original error.
func Failed(err error) *State {
	s := NewState(StateFailed)
	if err != nil {
		s.Message = err.Error()
		s.Err = err
	}
	return s
}

// Crashed returns a new Crashed state carrying the interrupt.
func Crashed(err error) *State {
	s := NewState(StateCrashed)
	s.Message = CrashMessage
	if err != nil {
		s.Message = CrashMessage + ": " + err.Error()
		s.Err = err
	}
	return s
}

// IsTerminal reports whether the state is terminal.
func (s *State) IsTerminal() bool { return s.Type.IsTerminal() }

// IsCompleted reports whether the state is Completed or a cache hit.
func (s *State) IsCompleted() bool { return s.Type.IsSuccessful() }

// IsFailed reports whether the state is Failed.
func (s *State) IsFailed() bool { return s.Type == StateFailed }

// IsCrashed reports whether the state is Crashed.
func (s *State) IsCrashed() bool { return s.Type == StateCrashed }

// IsRunning reports whether an attempt is executing under this state.
func (s *State) IsRunning() bool { return s.Type.IsRunningEquivalent() }

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	cp := *s
	if s.ResultRef != nil {
		ref := *s.ResultRef
		cp.ResultRef = &ref
	}
	if s.Details.FlowRunID != nil {
		id := *s.Details.FlowRunID
		cp.Details.FlowRunID = &id
	}
	return &cp
}
