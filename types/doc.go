/*
Package types provides the shared type contracts of the TaskFlow engine.

types is the lowest-level public package. It depends on nothing inside the
module and gives engine, orchestrator, cache, results and events a common
vocabulary, avoiding circular dependencies.

Core types:

  - State / StateType   — immutable, append-only lifecycle snapshots
  - Run                 — the mutable run aggregate with denormalized state
  - RunReference        — upstream linkage recorded in task inputs
  - RunResult           — a parameter value carrying its producing run id
  - TaskRunContext      — stack-scoped handle for the active task run
  - FlowRunContext      — ambient flow-level context (read-only for tasks)
  - Error / ErrorCode   — structured error taxonomy, including the explicit
    crash tag used by the classifier

Context propagation follows the explicit-parameter discipline: contexts are
threaded through context.Context values (WithTaskRun / TaskRunFromContext),
never looked up through globals.
*/
package types
