package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BaSui01/taskflow/types"
)

// ErrNotFound signals that no payload exists under the requested key, or
// that a previously written payload is no longer readable.
var ErrNotFound = errors.New("result not found")

// IsNotFound reports whether err is a missing-payload signal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store persists result payloads under string keys.
type Store interface {
	// Name identifies the backend, recorded on every ResultRef it issues.
	Name() string

	// Write persists payload under key and returns a reference to it.
	// Writing overwrites any previous payload under the same key.
	Write(ctx context.Context, key string, payload []byte) (*types.ResultRef, error)

	// Read returns the payload referenced by ref, or ErrNotFound.
	Read(ctx context.Context, ref *types.ResultRef) ([]byte, error)
}

// Encode serializes a result value for storage. A nil value encodes to JSON
// null and is a legitimate payload.
func Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}

// Decode deserializes a stored payload.
func Decode(payload []byte) (any, error) {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return value, nil
}
