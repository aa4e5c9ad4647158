// Package orchestrator is the authority over run records and their state
// transitions.
//
// Every lifecycle transition flows through Client.ProposeState: the engine
// proposes a desired state and must continue with the accepted state the
// orchestrator returns, which may differ (a proposal against a terminal run
// is rewritten to the current state). Acceptance is durable before the
// engine makes its next decision, and acceptance is where the run aggregate
// is maintained: attempt counters, start/end times and the denormalized
// current-state triple all change here and nowhere else.
//
// Two backends: MemoryClient for tests and embedded use, GormClient for a
// durable SQLite-backed record.
package orchestrator
