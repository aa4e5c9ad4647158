package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/taskflow/engine"
	"github.com/BaSui01/taskflow/events"
	"github.com/BaSui01/taskflow/orchestrator"
	"github.com/BaSui01/taskflow/results"
	"github.com/BaSui01/taskflow/types"
)

// Harness is a fully wired engine over in-memory collaborators.
type Harness struct {
	Engine *engine.Engine
	Client *orchestrator.MemoryClient
	Store  *results.MemoryStore
	Events *events.Collector
	Logger *zap.Logger
}

// NewHarness wires an engine for one test. Defaults are zero: no retries,
// no timeout, no persistence unless the task configures it.
func NewHarness(t *testing.T, opts ...HarnessOption) *Harness {
	t.Helper()

	h := &Harness{
		Client: nil,
		Store:  results.NewMemoryStore(),
		Events: events.NewCollector(),
		Logger: zaptest.NewLogger(t),
	}
	h.Client = orchestrator.NewMemoryClient(h.Logger)

	options := engine.Options{
		Client:  h.Client,
		Results: h.Store,
		Emitter: h.Events,
		Logger:  h.Logger,
	}
	for _, opt := range opts {
		opt(&options)
	}
	h.Engine = engine.New(options)
	return h
}

// HarnessOption adjusts the engine options before construction.
type HarnessOption func(*engine.Options)

// Run reads the current run aggregate.
func (h *Harness) Run(t *testing.T, id uuid.UUID) *types.Run {
	t.Helper()
	run, err := h.Client.ReadRun(context.Background(), id)
	require.NoError(t, err)
	return run
}

// History returns the run's recorded state types, oldest first.
func (h *Harness) History(t *testing.T, id uuid.UUID) []types.StateType {
	t.Helper()
	states, err := h.Client.ReadRunStates(context.Background(), id)
	require.NoError(t, err)
	out := make([]types.StateType, len(states))
	for i, st := range states {
		out[i] = st.Type
	}
	return out
}

// LastRunID returns the id of the most recently created run observed through
// the event stream. Fails when nothing ran yet.
func (h *Harness) LastRunID(t *testing.T) uuid.UUID {
	t.Helper()
	evs := h.Events.Events()
	require.NotEmpty(t, evs, "no run executed yet")
	return evs[len(evs)-1].RunID
}

// TestContext returns a context that expires with a generous test budget and
// is cancelled on cleanup.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns an already-cancelled context.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
