package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashKey produces a deterministic fingerprint for a task name and an input
// map. JSON marshalling sorts map keys, so equal inputs hash equally across
// processes.
func HashKey(taskName string, inputs map[string]any) (string, error) {
	payload := struct {
		Task   string         `json:"task"`
		Inputs map[string]any `json:"inputs"`
	}{Task: taskName, Inputs: inputs}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hash cache inputs: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16]), nil
}
