package pkg

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// Contains checks if an item is in a slice.
func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}

	return false
}

// SafeIntToUint64 converts int to uint64 clamping negatives to zero.
func SafeIntToUint64(val int) uint64 {
	if val < 0 {
		return 0
	}

	return uint64(val)
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// GenerateUUIDv7 generates a time-ordered UUID, falling back to v4 when the
// system clock source is unavailable.
func GenerateUUIDv7() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}

	return id
}

// StructToJSONString converts a struct to its JSON string representation.
func StructToJSONString(s any) (string, error) {
	jsonData, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	return string(jsonData), nil
}

// StableHash produces the SHA-1 hex digest of the canonical sorted-key JSON
// representation of v. Used for composite cache-key components.
func StableHash(v any) string {
	raw, err := canonicalJSON(v)
	if err != nil {
		raw = []byte(hex.EncodeToString([]byte("unhashable")))
	}

	sum := sha1.Sum(raw)

	return hex.EncodeToString(sum[:])
}

// ParamsHash produces the first 16 hex chars of the SHA-256 digest of the
// canonical sorted-key JSON of a parameter map with nil values excluded.
// Two requests with identical semantic filters share one digest.
func ParamsHash(params map[string]any) string {
	filtered := make(map[string]any, len(params))

	for k, v := range params {
		if v == nil {
			continue
		}

		filtered[k] = v
	}

	if len(filtered) == 0 {
		return "default"
	}

	raw, err := canonicalJSON(filtered)
	if err != nil {
		return "default"
	}

	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:])[:16]
}

// canonicalJSON marshals v with deterministic map-key ordering. encoding/json
// already sorts map keys; the extra pass normalizes nested structs through a
// map round-trip so field order cannot leak in.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}

	return json.Marshal(tree)
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
