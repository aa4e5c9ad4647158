package engine_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/taskflow/cache"
	"github.com/BaSui01/taskflow/engine"
	"github.com/BaSui01/taskflow/testutil"
	"github.com/BaSui01/taskflow/types"
)

func durp(d time.Duration) *time.Duration { return &d }

func countingTask(name string, calls *atomic.Int32, spec engine.TaskSpec) *engine.Task {
	spec.Name = name
	spec.Fn = func(_ context.Context, params map[string]any) (any, error) {
		calls.Add(1)
		return params["word"], nil
	}
	return engine.MustTask(spec)
}

func TestCache_HitShortCircuitsExecution(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var calls atomic.Int32
	task := countingTask("echo", &calls, engine.TaskSpec{CachePolicy: cache.InputsPolicy{}})
	params := map[string]any{"word": "hello"}

	value, err := h.Engine.Run(testutil.TestContext(t), task, params)
	require.NoError(t, err)
	require.Equal(t, "hello", value)
	require.EqualValues(t, 1, calls.Load())

	// Same inputs: the cached value completes the run without executing.
	st, err := h.Engine.RunState(testutil.TestContext(t), task, params)
	require.NoError(t, err)
	require.Equal(t, types.StateCachedHit, st.Type)
	require.Equal(t, "Cached", st.Name)
	require.EqualValues(t, 1, calls.Load())

	value, err = h.Engine.Result(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, "hello", value)

	// A cache hit never executed: no attempt, no start, but a terminal end.
	runID := st.Details.TaskRunID
	require.Equal(t,
		[]types.StateType{types.StatePending, types.StateCachedHit},
		h.History(t, runID))
	run := h.Run(t, runID)
	require.Zero(t, run.RunCount)
	require.Nil(t, run.StartTime)
	require.NotNil(t, run.EndTime)
	require.Zero(t, run.TotalRunTime)

	// Different inputs miss.
	_, err = h.Engine.Run(testutil.TestContext(t), task, map[string]any{"word": "other"})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestCache_KeyIncludesTaskName(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var aCalls, bCalls atomic.Int32
	a := countingTask("task-a", &aCalls, engine.TaskSpec{CachePolicy: cache.InputsPolicy{}})
	b := countingTask("task-b", &bCalls, engine.TaskSpec{CachePolicy: cache.InputsPolicy{}})
	params := map[string]any{"word": "shared"}

	_, err := h.Engine.Run(testutil.TestContext(t), a, params)
	require.NoError(t, err)

	// Identical parameters, different task: no collision.
	_, err = h.Engine.Run(testutil.TestContext(t), b, params)
	require.NoError(t, err)
	require.EqualValues(t, 1, aCalls.Load())
	require.EqualValues(t, 1, bCalls.Load())
}

func TestCache_TasksShareAnExplicitKey(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	shared := cache.PolicyFromFunc(func(context.Context, *cache.KeyInput) (string, error) {
		return "common-key", nil
	})

	var calls atomic.Int32
	producer := countingTask("producer", &calls, engine.TaskSpec{CachePolicy: shared})
	consumer := countingTask("consumer", &calls, engine.TaskSpec{CachePolicy: shared})

	value, err := h.Engine.Run(testutil.TestContext(t), producer, map[string]any{"word": "made once"})
	require.NoError(t, err)
	require.Equal(t, "made once", value)

	// The second task reuses the first task's result outright.
	value, err = h.Engine.Run(testutil.TestContext(t), consumer, map[string]any{"word": "ignored"})
	require.NoError(t, err)
	require.Equal(t, "made once", value)
	require.EqualValues(t, 1, calls.Load())
}

func TestCache_ExpiredRecordIsAMiss(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var calls atomic.Int32
	task := countingTask("short-lived", &calls, engine.TaskSpec{
		CachePolicy:     cache.InputsPolicy{},
		CacheExpiration: durp(20 * time.Millisecond),
	})
	params := map[string]any{"word": "fleeting"}

	_, err := h.Engine.Run(testutil.TestContext(t), task, params)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	st, err := h.Engine.RunState(testutil.TestContext(t), task, params)
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, st.Type)
	require.EqualValues(t, 2, calls.Load())
}

func TestCache_StorageKeyActsAsFixedCacheKey(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var calls atomic.Int32
	task := countingTask("pinned-key", &calls, engine.TaskSpec{
		ResultStorageKey: "fixed-slot",
	})

	// First run computes and persists under the pinned key.
	value, err := h.Engine.Run(testutil.TestContext(t), task, map[string]any{"word": "first"})
	require.NoError(t, err)
	require.Equal(t, "first", value)

	// Parameters differ, but the key is fixed: still a hit.
	st, err := h.Engine.RunState(testutil.TestContext(t), task, map[string]any{"word": "second"})
	require.NoError(t, err)
	require.Equal(t, types.StateCachedHit, st.Type)
	require.Equal(t, "fixed-slot", st.Details.CacheKey)
	require.EqualValues(t, 1, calls.Load())

	// External data loss under the key turns the next run into a miss.
	h.Store.Delete("fixed-slot")
	st, err = h.Engine.RunState(testutil.TestContext(t), task, map[string]any{"word": "third"})
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, st.Type)
	require.EqualValues(t, 2, calls.Load())
}

func TestCache_NilResultIsALiveHit(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var calls atomic.Int32
	task := engine.MustTask(engine.TaskSpec{
		Name:        "void",
		CachePolicy: cache.InputsPolicy{},
		Fn: func(context.Context, map[string]any) (any, error) {
			calls.Add(1)
			return nil, nil
		},
	})

	value, err := h.Engine.Run(testutil.TestContext(t), task, nil)
	require.NoError(t, err)
	require.Nil(t, value)

	// A cached null is a legitimate value, not a miss.
	st, err := h.Engine.RunState(testutil.TestContext(t), task, nil)
	require.NoError(t, err)
	require.Equal(t, types.StateCachedHit, st.Type)
	require.EqualValues(t, 1, calls.Load())

	value, err = h.Engine.Result(context.Background(), st)
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestCache_CorruptRecordIsAMiss(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var calls atomic.Int32
	task := countingTask("resilient", &calls, engine.TaskSpec{
		ResultStorageKey: "mangled-slot",
	})

	_, err := h.Store.Write(context.Background(), "mangled-slot", []byte("not json at all"))
	require.NoError(t, err)

	// The unreadable record does not fail the run; it executes normally and
	// overwrites the slot.
	st, err := h.Engine.RunState(testutil.TestContext(t), task, map[string]any{"word": "fresh"})
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, st.Type)
	require.EqualValues(t, 1, calls.Load())

	st, err = h.Engine.RunState(testutil.TestContext(t), task, map[string]any{"word": "again"})
	require.NoError(t, err)
	require.Equal(t, types.StateCachedHit, st.Type)
	require.EqualValues(t, 1, calls.Load())
}
