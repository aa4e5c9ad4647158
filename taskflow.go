// Package taskflow provides a top-level convenience entry point for running
// tasks with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/taskflow"
//
//	task := taskflow.MustTask(taskflow.TaskSpec{
//		Name: "double",
//		Fn: func(ctx context.Context, params map[string]any) (any, error) {
//			return params["n"].(int) * 2, nil
//		},
//	})
//	eng := taskflow.New(taskflow.Options{})
//	v, err := eng.Run(ctx, task, map[string]any{"n": 21})
//
// This is a thin wrapper around the engine package; both produce identical
// results. Use this package when you prefer the shorter import path.
package taskflow

import (
	"github.com/BaSui01/taskflow/engine"
)

// Engine executes tasks. See [engine.Engine].
type Engine = engine.Engine

// Options wires an engine's collaborators. See [engine.Options].
type Options = engine.Options

// Task is a validated, immutable task definition.
type Task = engine.Task

// TaskSpec declares one unit of work.
type TaskSpec = engine.TaskSpec

// Future is a handle on a run executing in the background.
type Future = engine.Future

// Iterator consumes an incremental task run.
type Iterator = engine.Iterator

// New creates an engine; zero Options default to in-memory collaborators.
func New(opts Options) *Engine {
	return engine.New(opts)
}

// NewTask validates spec and returns an immutable definition.
func NewTask(spec TaskSpec) (*Task, error) {
	return engine.NewTask(spec)
}

// MustTask is NewTask panicking on invalid specs.
var MustTask = engine.MustTask

// WithRunID pins the created run's id instead of assigning one.
var WithRunID = engine.WithRunID
