package mcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computor-org/computor/pkg/mlog"
	"github.com/computor-org/computor/pkg/mredis"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	conn := &mredis.RedisConnection{
		Client:    redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Connected: true,
		Logger:    &mlog.NoneLogger{},
	}

	return New(conn, "test", 10*time.Minute), mr
}

func TestSetGetByKey(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	payload := map[string]string{"name": "John"}
	cache.SetByKey(ctx, cache.Key("user", "123"), payload, 0)

	var got map[string]string
	require.True(t, cache.GetByKey(ctx, cache.Key("user", "123"), &got))
	assert.Equal(t, payload, got)

	var missing map[string]string
	assert.False(t, cache.GetByKey(ctx, cache.Key("user", "999"), &missing))
}

func TestSetByKeyRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.SetByKey(ctx, cache.Key("bad", "1"), make(chan int), 0)

	assert.False(t, mr.Exists(cache.Key("bad", "1")))
}

func TestSetWithTagsRoundTrip(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	tags := []string{"course:456", "org:789", "course:list"}

	for _, invalidate := range [][]string{
		{"course:456"},
		{"org:789"},
		{"course:list", "org:789"},
		tags,
	} {
		key := cache.Key("course", "456")
		cache.SetWithTags(ctx, key, map[string]string{"title": "prog1"}, tags, 0)

		var before map[string]string
		require.True(t, cache.GetByKey(ctx, key, &before))

		cache.InvalidateTags(ctx, invalidate...)

		var after map[string]string
		assert.Falsef(t, cache.GetByKey(ctx, key, &after), "key survived invalidating %v", invalidate)
	}
}

func TestInvalidateTagsIsIdempotent(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := cache.Key("course", "1")
	cache.SetWithTags(ctx, key, "v", []string{"course:1"}, 0)

	cache.InvalidateTags(ctx, "course:1")
	snapshot := mr.Keys()

	cache.InvalidateTags(ctx, "course:1")
	assert.ElementsMatch(t, snapshot, mr.Keys())
}

func TestInvalidateTagsCleansIndex(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := cache.Key("course", "1")
	cache.SetWithTags(ctx, key, "v", []string{"course:1", "org:9"}, 0)

	cache.InvalidateTags(ctx, "course:1")

	// Value, both tag sets and the side-set must be gone.
	assert.False(t, mr.Exists(key))
	assert.False(t, mr.Exists(cache.K("keytags", key)))
	assert.False(t, mr.Exists(cache.K("tag", "course:1")))

	members, _ := mr.SMembers(cache.K("tag", "org:9"))
	assert.Empty(t, members)
}

func TestInterruptedInvalidationSelfHeals(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := cache.Key("course", "1")
	cache.SetWithTags(ctx, key, "v", []string{"course:1", "org:9"}, 0)

	// Simulate an interrupted invalidation: the value died but the index rows
	// survived.
	mr.Del(key)

	var got string
	assert.False(t, cache.GetByKey(ctx, key, &got))

	// A later invalidation converges the index to fully clean.
	cache.InvalidateTags(ctx, "course:1")

	assert.False(t, mr.Exists(cache.K("tag", "course:1")))
	assert.False(t, mr.Exists(cache.K("keytags", key)))
}

func TestGetKeysForTag(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetWithTags(ctx, cache.Key("course", "1"), "a", []string{"org:9"}, 0)
	cache.SetWithTags(ctx, cache.Key("course", "2"), "b", []string{"org:9"}, 0)

	keys := cache.GetKeysForTag(ctx, "org:9")
	assert.ElementsMatch(t, []string{cache.Key("course", "1"), cache.Key("course", "2")}, keys)
}

func TestBumpTagChangesVersionedKey(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	assert.EqualValues(t, 0, cache.TagVersion(ctx, "dashboard"))

	before := cache.ComposeVersionedKey(ctx, "dashboard:42", "dashboard")
	same := cache.ComposeVersionedKey(ctx, "dashboard:42", "dashboard")
	assert.Equal(t, before, same)

	v := cache.BumpTag(ctx, "dashboard")
	assert.EqualValues(t, 1, v)

	after := cache.ComposeVersionedKey(ctx, "dashboard:42", "dashboard")
	assert.NotEqual(t, before, after)
}

func TestClearPrefix(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.SetByKey(ctx, cache.Key("course", "1"), "a", 0)
	cache.SetByKey(ctx, cache.Key("course", "2"), "b", 0)
	require.NoError(t, mr.Set("other:key", "survives"))

	cache.ClearPrefix(ctx)

	assert.False(t, mr.Exists(cache.Key("course", "1")))
	assert.False(t, mr.Exists(cache.Key("course", "2")))
	assert.True(t, mr.Exists("other:key"))
}

func TestStats(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetByKey(ctx, cache.Key("a", "1"), "v", 0)

	var got string
	cache.GetByKey(ctx, cache.Key("a", "1"), &got)
	cache.GetByKey(ctx, cache.Key("a", "2"), &got)

	stats := cache.GetStats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Sets)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)

	cache.ResetStats()
	assert.EqualValues(t, 0, cache.GetStats().Hits)
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.SetByKey(ctx, cache.Key("a", "1"), "v", 2*time.Second)

	mr.FastForward(3 * time.Second)

	var got string
	assert.False(t, cache.GetByKey(ctx, cache.Key("a", "1"), &got))
}

// erroringConnection always fails, driving the cache into bypass mode.
func erroringConnection(t *testing.T) *mredis.RedisConnection {
	t.Helper()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	return &mredis.RedisConnection{
		Client: redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 10 * time.Millisecond}),
		Logger: &mlog.NoneLogger{},
	}
}

func TestBypassModeOnBackendFailure(t *testing.T) {
	t.Parallel()

	cache := New(erroringConnection(t), "test", time.Minute)
	ctx := context.Background()

	// Every operation degrades silently: miss on read, no-op on write.
	cache.SetByKey(ctx, "test:a:1", "v", 0)
	cache.SetWithTags(ctx, "test:a:2", "v", []string{"t"}, 0)
	cache.InvalidateTags(ctx, "t")
	cache.DeleteByKey(ctx, "test:a:1")

	var got string
	assert.False(t, cache.GetByKey(ctx, "test:a:1", &got))
	assert.EqualValues(t, 0, cache.TagVersion(ctx, "t"))
	assert.Empty(t, cache.GetKeysForTag(ctx, "t"))
}
