package results

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/taskflow/types"
)

func TestEncodeDecode_RoundTripsNil(t *testing.T) {
	t.Parallel()

	payload, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(payload))

	value, err := Decode(payload)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	ref, err := store.Write(ctx, "k1", []byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, "memory", ref.Backend)
	assert.Equal(t, "k1", ref.StorageKey)

	payload, err := store.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, `42`, string(payload))

	_, err = store.Read(ctx, &types.ResultRef{Backend: "memory", StorageKey: "missing"})
	assert.True(t, IsNotFound(err))

	store.Delete("k1")
	_, err = store.Read(ctx, ref)
	assert.True(t, IsNotFound(err), "deleted payloads must read as not found")
}

func TestFilesystemStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Write(ctx, "foo-bar", []byte(`{"v":1}`))
	require.NoError(t, err)

	// References carry the absolute path so they resolve from anywhere.
	assert.True(t, filepath.IsAbs(ref.StorageKey))
	assert.Equal(t, "foo-bar", filepath.Base(ref.StorageKey))

	payload, err := store.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(payload))

	// External deletion reads back as not found, not as a hard error.
	require.NoError(t, os.Remove(ref.StorageKey))
	_, err = store.Read(ctx, ref)
	assert.True(t, IsNotFound(err))
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "")

	ref, err := store.Write(ctx, "k1", []byte(`"cached"`))
	require.NoError(t, err)
	assert.Equal(t, "redis", ref.Backend)

	payload, err := store.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, `"cached"`, string(payload))

	_, err = store.Read(ctx, &types.ResultRef{Backend: "redis", StorageKey: "nope"})
	assert.True(t, IsNotFound(err))
}
