package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/taskflow/engine"
	"github.com/BaSui01/taskflow/testutil"
	"github.com/BaSui01/taskflow/types"
)

func TestIterate_StreamsIncrementsThenCompletes(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	task := engine.MustTask(engine.TaskSpec{
		Name: "counter",
		Generator: func(_ context.Context, _ map[string]any, yield engine.YieldFn) (any, error) {
			for i := 1; i <= 3; i++ {
				if err := yield(i); err != nil {
					return nil, err
				}
			}
			return "all done", nil
		},
	})

	ctx := testutil.TestContext(t)
	it, err := h.Engine.Iterate(ctx, task, nil)
	require.NoError(t, err)

	// The body has not started: the run is still Pending.
	require.Equal(t, types.StatePending, h.Run(t, it.RunID()).StateType)
	require.Nil(t, it.State())

	require.True(t, it.Next(ctx))
	require.Equal(t, 1, it.Value())

	// Mid-consumption the run is Running, not terminal.
	require.Equal(t, types.StateRunning, h.Run(t, it.RunID()).StateType)

	require.True(t, it.Next(ctx))
	require.Equal(t, 2, it.Value())
	require.True(t, it.Next(ctx))
	require.Equal(t, 3, it.Value())

	require.False(t, it.Next(ctx))
	require.NoError(t, it.Err())
	require.Equal(t, "all done", it.ReturnValue())
	require.Equal(t, types.StateCompleted, it.State().Type)

	require.Equal(t,
		[]types.StateType{types.StatePending, types.StateRunning, types.StateCompleted},
		h.History(t, it.RunID()))
	require.Equal(t, 1, h.Run(t, it.RunID()).RunCount)
}

func TestIterate_RetryReplaysFromTheStart(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var passes atomic.Int32
	task := engine.MustTask(engine.TaskSpec{
		Name:    "replayer",
		Retries: intp(2),
		Generator: func(_ context.Context, _ map[string]any, yield engine.YieldFn) (any, error) {
			pass := passes.Add(1)
			for i := 1; i <= 2; i++ {
				if err := yield(i); err != nil {
					return nil, err
				}
			}
			if pass < 3 {
				return nil, errors.New("lost my place")
			}
			return "finished", nil
		},
	})

	ctx := testutil.TestContext(t)
	it, err := h.Engine.Iterate(ctx, task, nil)
	require.NoError(t, err)

	// There is no checkpoint: every retry re-emits the prior increments.
	values, err := it.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 1, 2, 1, 2}, values)
	require.Equal(t, "finished", it.ReturnValue())

	require.Equal(t,
		[]types.StateType{
			types.StatePending, types.StateRunning,
			types.StateRetrying, types.StateRetrying,
			types.StateCompleted,
		},
		h.History(t, it.RunID()))
	require.Equal(t, 3, h.Run(t, it.RunID()).RunCount)
}

func TestIterate_CleanExhaustionDoesNotRetry(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	var passes atomic.Int32
	task := engine.MustTask(engine.TaskSpec{
		Name:    "one-shot",
		Retries: intp(5),
		Generator: func(_ context.Context, _ map[string]any, yield engine.YieldFn) (any, error) {
			passes.Add(1)
			return nil, yield("only")
		},
	})

	ctx := testutil.TestContext(t)
	it, err := h.Engine.Iterate(ctx, task, nil)
	require.NoError(t, err)

	values, err := it.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, []any{"only"}, values)
	require.EqualValues(t, 1, passes.Load())
	require.Equal(t, 1, h.Run(t, it.RunID()).RunCount)
}

func TestIterate_ExhaustedRetriesEndFailed(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	boom := errors.New("broken tape")
	task := engine.MustTask(engine.TaskSpec{
		Name: "fragile",
		Generator: func(_ context.Context, _ map[string]any, yield engine.YieldFn) (any, error) {
			if err := yield("a"); err != nil {
				return nil, err
			}
			return nil, boom
		},
	})

	ctx := testutil.TestContext(t)
	it, err := h.Engine.Iterate(ctx, task, nil)
	require.NoError(t, err)

	values, err := it.Collect(ctx)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []any{"a"}, values)
	require.Equal(t, types.StateFailed, it.State().Type)
}

func TestIterate_TimeoutSpansTheWholeConsumption(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	task := engine.MustTask(engine.TaskSpec{
		Name:    "drip",
		Timeout: 60 * time.Millisecond,
		Retries: intp(2),
		Generator: func(_ context.Context, _ map[string]any, yield engine.YieldFn) (any, error) {
			for i := 0; ; i++ {
				if err := yield(i); err != nil {
					return nil, err
				}
				time.Sleep(25 * time.Millisecond)
			}
		},
	})

	ctx := testutil.TestContext(t)
	it, err := h.Engine.Iterate(ctx, task, nil)
	require.NoError(t, err)

	values, err := it.Collect(ctx)
	require.True(t, types.IsTimeout(err), "expected timeout, got %v", err)
	require.NotEmpty(t, values)
	require.Equal(t, types.StateFailed, it.State().Type)

	// The deadline is fixed at the first Next and spans the replays too, so
	// the retry attempts fail straight away instead of consuming a fresh
	// budget each.
	require.Equal(t, 3, h.Run(t, it.RunID()).RunCount)
}

func TestIterate_CancellationCrashesTheRun(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	task := engine.MustTask(engine.TaskSpec{
		Name: "endless",
		Generator: func(_ context.Context, _ map[string]any, yield engine.YieldFn) (any, error) {
			for i := 0; ; i++ {
				if err := yield(i); err != nil {
					return nil, err
				}
			}
		},
	})

	it, err := h.Engine.Iterate(ctx, task, nil)
	require.NoError(t, err)
	require.True(t, it.Next(ctx))
	require.Equal(t, 0, it.Value())

	cancel()

	// At most one already-yielded value may still arrive; after that the
	// stream ends with the crash.
	for it.Next(testutil.TestContext(t)) {
	}
	require.Equal(t, types.ErrExecutionAborted, types.GetErrorCode(it.Err()))
	require.Equal(t, types.StateCrashed, it.State().Type)
	require.Equal(t, types.StateCrashed, h.Run(t, it.RunID()).StateType)
}

func TestIterate_NextContextBoundsTheWaitOnly(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	task := engine.MustTask(engine.TaskSpec{
		Name: "quiet",
		Generator: func(genCtx context.Context, _ map[string]any, _ engine.YieldFn) (any, error) {
			// Yields nothing until torn down.
			<-genCtx.Done()
			return nil, genCtx.Err()
		},
	})

	it, err := h.Engine.Iterate(ctx, task, nil)
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer waitCancel()
	require.False(t, it.Next(waitCtx))
	require.ErrorIs(t, it.Err(), context.DeadlineExceeded)
}

func TestIterate_RejectsSingleValuedTasks(t *testing.T) {
	t.Parallel()
	h := testutil.NewHarness(t)

	task := engine.MustTask(engine.TaskSpec{
		Name: "plain",
		Fn:   func(context.Context, map[string]any) (any, error) { return nil, nil },
	})

	_, err := h.Engine.Iterate(testutil.TestContext(t), task, nil)
	require.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
}
