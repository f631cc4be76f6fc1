package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsHash(t *testing.T) {
	t.Parallel()

	a := ParamsHash(map[string]any{"course_id": "123", "limit": 10})
	b := ParamsHash(map[string]any{"limit": 10, "course_id": "123"})
	assert.Equal(t, a, b, "key order must not matter")
	assert.Len(t, a, 16)

	c := ParamsHash(map[string]any{"course_id": "456", "limit": 10})
	assert.NotEqual(t, a, c)

	// Nil values are excluded before hashing.
	d := ParamsHash(map[string]any{"course_id": "123", "limit": 10, "path": nil})
	assert.Equal(t, a, d)

	assert.Equal(t, "default", ParamsHash(nil))
	assert.Equal(t, "default", ParamsHash(map[string]any{"path": nil}))
}

func TestStableHash(t *testing.T) {
	t.Parallel()

	a := StableHash(map[string]any{"x": 1, "y": "z"})
	b := StableHash(map[string]any{"y": "z", "x": 1})
	assert.Equal(t, a, b)
	assert.Len(t, a, 40)

	assert.NotEqual(t, a, StableHash(map[string]any{"x": 2, "y": "z"}))
}

func TestContains(t *testing.T) {
	t.Parallel()

	assert.True(t, Contains([]string{"a", "b"}, "a"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.True(t, Contains([]int{1, 2, 3}, 2))
}

func TestSafeIntToUint64(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 7, SafeIntToUint64(7))
	assert.EqualValues(t, 0, SafeIntToUint64(-1))
}

func TestIsUUID(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, IsUUID("not-a-uuid"))
}

func TestSortedKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 3, "a": 1, "b": 2}))
}
