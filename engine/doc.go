/*
Package engine drives the full lifecycle of one task run.

A Task is an immutable, validated definition of a unit of work. The Engine
executes it: it creates a run record through the orchestrator, short-circuits
on a live cached result, runs the body under timeout supervision with retry
and backoff, classifies crashes apart from ordinary failures, and records
every transition durably before acting on it.

One state-machine core backs four calling conventions:

	v, err  := eng.Run(ctx, task, params)      // block until terminal, unwrap the value
	st, err := eng.RunState(ctx, task, params) // block until terminal, return the state
	fut, _  := eng.Submit(ctx, task, params)   // return immediately, await via the Future
	it, _   := eng.Iterate(ctx, task, params)  // incremental bodies, consume via the Iterator

All four produce identical state histories for equivalent inputs.
*/
package engine
