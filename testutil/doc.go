/*
Package testutil provides shared helpers for taskflow tests.

The core piece is Harness, which wires an engine against in-memory
collaborators (orchestrator, result store, event collector) with a test
logger, plus accessors for the run record and its state history so tests
can assert on full lifecycles.

Context helpers (TestContext, CancelledContext) register cleanup
automatically to prevent goroutine leaks.
*/
package testutil
