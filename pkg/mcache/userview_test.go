package mcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserViewRoundTrip(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	data := []map[string]any{{"id": "c1", "title": "Week 1"}}
	cache.SetUserView(ctx, "user123", "course_contents", data, "", 0, map[string]string{"course_id": "789"})

	var got []map[string]any
	require.True(t, cache.GetUserView(ctx, "user123", "course_contents", "", &got))
	assert.Equal(t, "c1", got[0]["id"])
}

func TestInvalidateUserViewsScoping(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetUserView(ctx, "u1", "courses", "a", "", 0, nil)
	cache.SetUserView(ctx, "u1", "course_content", "b", "cc9", 0, nil)
	cache.SetUserView(ctx, "u2", "courses", "c", "", 0, nil)

	// Invalidating u1 removes exactly the values keyed user_view:u1:* and
	// leaves every other user intact.
	cache.InvalidateUserViews(ctx, "u1", "", "", "")

	var got string
	assert.False(t, cache.GetUserView(ctx, "u1", "courses", "", &got))
	assert.False(t, cache.GetUserView(ctx, "u1", "course_content", "cc9", &got))
	assert.True(t, cache.GetUserView(ctx, "u2", "courses", "", &got))
}

func TestInvalidateUserViewsByViewType(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetUserView(ctx, "u1", "courses", "a", "", 0, nil)
	cache.SetUserView(ctx, "u2", "courses", "b", "", 0, nil)
	cache.SetUserView(ctx, "u2", "gradings", "c", "", 0, nil)

	cache.InvalidateUserViews(ctx, "", "courses", "", "")

	var got string
	assert.False(t, cache.GetUserView(ctx, "u1", "courses", "", &got))
	assert.False(t, cache.GetUserView(ctx, "u2", "courses", "", &got))
	assert.True(t, cache.GetUserView(ctx, "u2", "gradings", "", &got))
}

func TestInvalidateUserViewsByRelatedEntity(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetUserView(ctx, "u1", "course_contents", "a", "", 0, map[string]string{"course_id": "789"})
	cache.SetUserView(ctx, "u2", "course_contents", "b", "", 0, map[string]string{"course_id": "789"})
	cache.SetUserView(ctx, "u3", "course_contents", "c", "", 0, map[string]string{"course_id": "555"})

	cache.InvalidateUserViews(ctx, "", "", "course_id", "789")

	var got string
	assert.False(t, cache.GetUserView(ctx, "u1", "course_contents", "", &got))
	assert.False(t, cache.GetUserView(ctx, "u2", "course_contents", "", &got))
	assert.True(t, cache.GetUserView(ctx, "u3", "course_contents", "", &got))
}

func TestSetUserViewBareRelatedTag(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	// A related id with an empty value pins the bare tag, the form used to
	// tag individual returned rows like course_content:{id}.
	cache.SetUserView(ctx, "u1", "course_contents", "a", "", 0, map[string]string{"course_content:cc1": ""})

	cache.InvalidateTags(ctx, "course_content:cc1")

	var got string
	assert.False(t, cache.GetUserView(ctx, "u1", "course_contents", "", &got))
}
