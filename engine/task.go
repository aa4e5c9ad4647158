package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/taskflow/cache"
	"github.com/BaSui01/taskflow/results"
	"github.com/BaSui01/taskflow/retry"
	"github.com/BaSui01/taskflow/types"
)

// BodyFn is a single-valued task body.
type BodyFn func(ctx context.Context, params map[string]any) (any, error)

// YieldFn hands one increment to the consumer. It returns an error when the
// run can no longer accept values (timeout or cancellation); the body should
// stop and return that error.
type YieldFn func(v any) error

// GeneratorFn is an incremental task body. The returned value is the final
// return distinct from the yielded increments, exposed after exhaustion.
type GeneratorFn func(ctx context.Context, params map[string]any, yield YieldFn) (any, error)

// TaskSpec declares one unit of work. Zero values defer to the engine-wide
// defaults.
type TaskSpec struct {
	// Name identifies the task. Required.
	Name string

	// Fn is the blocking body. Exactly one of Fn and Generator must be set.
	Fn BodyFn

	// Generator is the incremental body.
	Generator GeneratorFn

	// Retries is the retry budget; nil defers to the engine default.
	Retries *int

	// RetryDelay is the wait before each retry. Sequences shorter than the
	// budget reuse their last element.
	RetryDelay retry.DelaySpec

	// RetryJitter widens each delay by a random factor in [1, 1+jitter).
	RetryJitter float64

	// Timeout bounds one attempt's wall-clock time, or the whole consumption
	// for generator bodies. Zero means unbounded.
	Timeout time.Duration

	// CachePolicy computes the cache key; nil disables caching unless
	// ResultStorageKey is set.
	CachePolicy cache.Policy

	// CacheExpiration bounds a cached record's life. Nil means forever; a
	// zero duration expires records immediately.
	CacheExpiration *time.Duration

	// PersistResult controls result persistence; nil defers to the engine
	// default. Persistence is orthogonal to caching.
	PersistResult *bool

	// ResultStore overrides the engine's result store for this task.
	ResultStore results.Store

	// ResultStorageKey pins the storage key. It doubles as a fixed cache
	// key: a live value under it completes the run without executing.
	ResultStorageKey string

	// RunName templates the run's display name; "{param}" placeholders are
	// interpolated from call parameters. Empty means the task name.
	RunName string
}

// Task is a validated, immutable task definition.
type Task struct {
	spec TaskSpec
}

// NewTask validates spec and returns an immutable definition.
func NewTask(spec TaskSpec) (*Task, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, types.NewConfigError("task name is required")
	}
	if spec.Fn == nil && spec.Generator == nil {
		return nil, types.NewConfigError("task needs a body: set Fn or Generator")
	}
	if spec.Fn != nil && spec.Generator != nil {
		return nil, types.NewConfigError("task body must be either Fn or Generator, not both")
	}
	if spec.Retries != nil && *spec.Retries < 0 {
		return nil, types.NewConfigError("retries must not be negative")
	}
	if spec.RetryJitter < 0 {
		return nil, types.NewConfigError("retry jitter must not be negative")
	}
	if spec.Timeout < 0 {
		return nil, types.NewConfigError("timeout must not be negative")
	}
	return &Task{spec: spec}, nil
}

// MustTask is NewTask panicking on invalid specs. For package-level task
// definitions.
func MustTask(spec TaskSpec) *Task {
	t, err := NewTask(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the task name.
func (t *Task) Name() string { return t.spec.Name }

// IsGenerator reports whether the body is incremental.
func (t *Task) IsGenerator() bool { return t.spec.Generator != nil }

var runNamePlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// renderRunName interpolates "{param}" placeholders from call parameters.
// Unknown placeholders are left intact.
func renderRunName(template string, params map[string]any) string {
	if template == "" {
		return ""
	}
	return runNamePlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := params[key]; ok {
			return fmt.Sprintf("%v", v)
		}
		return m
	})
}
