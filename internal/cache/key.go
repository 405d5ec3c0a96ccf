package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives a deterministic cache key from a query name and its bound
// parameters. Map keys are sorted by encoding/json at every depth, so
// parameter order never changes the key. Integral numbers encode the same
// whether they arrive as int64 or float64. Nil and empty params are equal.
func Key(name string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(struct {
		Name   string         `json:"n"`
		Params map[string]any `json:"p"`
	}{name, params})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key for %q: %w", name, err)
	}

	sum := sha256.Sum256(payload)
	return name + ":" + hex.EncodeToString(sum[:]), nil
}
