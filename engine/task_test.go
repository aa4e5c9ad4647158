package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/taskflow/types"
)

func nopBody(context.Context, map[string]any) (any, error) { return nil, nil }

func nopGenerator(context.Context, map[string]any, YieldFn) (any, error) { return nil, nil }

func TestNewTaskValidation(t *testing.T) {
	t.Parallel()

	neg := -1
	cases := []struct {
		name    string
		spec    TaskSpec
		wantErr string
	}{
		{"valid body", TaskSpec{Name: "ok", Fn: nopBody}, ""},
		{"valid generator", TaskSpec{Name: "ok", Generator: nopGenerator}, ""},
		{"missing name", TaskSpec{Fn: nopBody}, "name is required"},
		{"blank name", TaskSpec{Name: "   ", Fn: nopBody}, "name is required"},
		{"no body", TaskSpec{Name: "empty"}, "needs a body"},
		{"both bodies", TaskSpec{Name: "twins", Fn: nopBody, Generator: nopGenerator}, "not both"},
		{"negative retries", TaskSpec{Name: "r", Fn: nopBody, Retries: &neg}, "retries"},
		{"negative jitter", TaskSpec{Name: "j", Fn: nopBody, RetryJitter: -0.5}, "jitter"},
		{"negative timeout", TaskSpec{Name: "t", Fn: nopBody, Timeout: -time.Second}, "timeout"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task, err := NewTask(tc.spec)
			if tc.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, task)
				return
			}
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestMustTaskPanicsOnInvalidSpec(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() { MustTask(TaskSpec{}) })
}

func TestRenderRunName(t *testing.T) {
	t.Parallel()

	params := map[string]any{"name": "marvin", "n": 3}
	assert.Equal(t, "", renderRunName("", params))
	assert.Equal(t, "plain", renderRunName("plain", params))
	assert.Equal(t, "hello marvin", renderRunName("hello {name}", params))
	assert.Equal(t, "run 3 of marvin", renderRunName("run {n} of {name}", params))
	// Unknown placeholders stay intact rather than rendering empty.
	assert.Equal(t, "hi {who}", renderRunName("hi {who}", params))
	assert.Equal(t, "hi {who}", renderRunName("hi {who}", nil))
}
