package cache

import (
	"context"
)

// KeyInput is everything a policy may fingerprint.
type KeyInput struct {
	TaskName string
	// Parameters are the call parameters, RunResult values already unwrapped.
	Parameters map[string]any
	// FlowParameters are the enclosing flow run's call parameters, when the
	// task executes inside a flow context.
	FlowParameters map[string]any
}

// Policy computes a cache key for one attempt. An empty key disables caching
// for that attempt.
type Policy interface {
	// Name identifies the policy in logs.
	Name() string

	// ComputeKey returns the fingerprint, or "" to skip caching.
	ComputeKey(ctx context.Context, in *KeyInput) (string, error)
}

// KeyFunc adapts a plain function into a Policy.
type KeyFunc func(ctx context.Context, in *KeyInput) (string, error)

type keyFuncPolicy struct{ fn KeyFunc }

// PolicyFromFunc wraps a user-supplied key function.
func PolicyFromFunc(fn KeyFunc) Policy {
	return &keyFuncPolicy{fn: fn}
}

func (p *keyFuncPolicy) Name() string { return "key_fn" }

func (p *keyFuncPolicy) ComputeKey(ctx context.Context, in *KeyInput) (string, error) {
	return p.fn(ctx, in)
}

// InputsPolicy fingerprints the task name together with its call parameters:
// re-invocation with identical inputs reuses the prior result.
type InputsPolicy struct{}

func (InputsPolicy) Name() string { return "inputs" }

func (InputsPolicy) ComputeKey(_ context.Context, in *KeyInput) (string, error) {
	return HashKey(in.TaskName, in.Parameters)
}

// FlowParametersPolicy fingerprints the enclosing flow run's parameters.
// Outside a flow context it produces no key.
type FlowParametersPolicy struct{}

func (FlowParametersPolicy) Name() string { return "flow_parameters" }

func (FlowParametersPolicy) ComputeKey(_ context.Context, in *KeyInput) (string, error) {
	if in.FlowParameters == nil {
		return "", nil
	}
	return HashKey(in.TaskName, in.FlowParameters)
}

// StorageKeyPolicy pins the fingerprint to a fixed storage key. Used when a
// task declares result_storage_key without a cache policy: an existing live
// value under the key completes the run without executing.
type StorageKeyPolicy struct {
	Key string
}

func (StorageKeyPolicy) Name() string { return "storage_key" }

func (p StorageKeyPolicy) ComputeKey(context.Context, *KeyInput) (string, error) {
	return p.Key, nil
}
