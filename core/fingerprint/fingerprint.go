package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash computes the content fingerprint of an arbitrary structured value.
// The value is serialized to JSON first (map keys are emitted in sorted
// order), so two values with identical content always produce identical
// fingerprints regardless of construction order.
func Hash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize value for fingerprinting: %w", err)
	}
	return Bytes(data), nil
}

// Bytes computes the fingerprint of a raw byte slice.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
