package orchestrator

import (
	"time"

	"github.com/BaSui01/taskflow/types"
)

// accepts reports whether desired may follow current. hasStates is false
// only for a freshly created run that has no history yet.
func accepts(current types.StateType, hasStates bool, desired types.StateType) bool {
	if !hasStates {
		// A run's first state is Pending, except a crash that strikes
		// before the run was ever scheduled.
		return desired == types.StatePending || desired == types.StateCrashed
	}
	if current.IsTerminal() {
		return false
	}

	switch desired {
	case types.StatePending:
		return false
	case types.StateRunning:
		return current == types.StatePending
	case types.StateRetrying:
		return current == types.StateRunning ||
			current == types.StateRetrying ||
			current == types.StateAwaitingRetry
	case types.StateAwaitingRetry:
		return current == types.StateRunning || current == types.StateRetrying
	case types.StateCompleted, types.StateFailed:
		return current.IsRunningEquivalent()
	case types.StateCachedHit:
		return current == types.StatePending
	case types.StateCrashed:
		return true
	default:
		return false
	}
}

// apply folds an accepted state into the run aggregate: denormalized
// current-state triple, attempt counter, and the time-tracking fields.
func apply(run *types.Run, st *types.State, now time.Time) {
	run.StateID = st.ID
	run.StateType = st.Type
	run.StateName = st.Name
	run.State = st.Clone()
	run.UpdatedAt = now

	switch {
	case st.Type == types.StatePending:
		ts := st.Timestamp
		run.ExpectedStartTime = &ts

	case st.Type.IsRunningEquivalent():
		run.RunCount++
		if run.StartTime == nil {
			ts := st.Timestamp
			run.StartTime = &ts
		}

	case st.Type.IsTerminal():
		// A crash before the first Running leaves end_time unset: the
		// run never started, so it cannot have finished.
		if st.Type == types.StateCrashed && run.StartTime == nil {
			return
		}
		ts := st.Timestamp
		run.EndTime = &ts
		if run.StartTime != nil {
			run.TotalRunTime = ts.Sub(*run.StartTime)
		}
	}
}
