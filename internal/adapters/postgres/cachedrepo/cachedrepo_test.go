package cachedrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mlog"
	"github.com/computor-org/computor/pkg/mredis"
)

type widget struct {
	ID    string `msgpack:"id"`
	Owner string `msgpack:"owner"`
}

type widgetSpec struct{}

func (widgetSpec) EntityType() string  { return "widget" }
func (widgetSpec) TTL() time.Duration  { return time.Minute }

func (widgetSpec) EntityTags(_ context.Context, w *widget) []string {
	return []string{"widget:" + w.ID, "widget:list", "owner:" + w.Owner}
}

func (widgetSpec) ListTags(filters map[string]any) []string {
	tags := []string{"widget:list"}

	if owner, ok := filters["owner"].(string); ok {
		tags = append(tags, "owner:"+owner)
	}

	return tags
}

func newTestHelper(t *testing.T) *Helper[widget] {
	t.Helper()

	mr := miniredis.RunT(t)

	conn := &mredis.RedisConnection{
		Client:    redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Connected: true,
		Logger:    &mlog.NoneLogger{},
	}

	return NewHelper[widget](mcache.New(conn, "test", time.Minute), widgetSpec{})
}

func TestCachedGetReadsThrough(t *testing.T) {
	t.Parallel()

	h := newTestHelper(t)
	ctx := context.Background()

	loads := 0

	load := func(context.Context) (*widget, error) {
		loads++
		return &widget{ID: "w1", Owner: "alice"}, nil
	}

	first, err := h.CachedGet(ctx, "w1", load)
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Owner)
	assert.Equal(t, 1, loads)

	second, err := h.CachedGet(ctx, "w1", load)
	require.NoError(t, err)
	assert.Equal(t, "alice", second.Owner)
	assert.Equal(t, 1, loads, "second read must hit the cache")
}

func TestCachedGetDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	h := newTestHelper(t)
	ctx := context.Background()

	wantErr := errors.New("boom")

	_, err := h.CachedGet(ctx, "w1", func(context.Context) (*widget, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	loads := 0

	_, err = h.CachedGet(ctx, "w1", func(context.Context) (*widget, error) {
		loads++
		return &widget{ID: "w1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
}

func TestCachedListSharesFilterHash(t *testing.T) {
	t.Parallel()

	h := newTestHelper(t)
	ctx := context.Background()

	loads := 0

	load := func(context.Context) ([]*widget, error) {
		loads++
		return []*widget{{ID: "w1", Owner: "alice"}}, nil
	}

	_, err := h.CachedList(ctx, map[string]any{"owner": "alice"}, load)
	require.NoError(t, err)

	list, err := h.CachedList(ctx, map[string]any{"owner": "alice"}, load)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, loads)

	_, err = h.CachedList(ctx, map[string]any{"owner": "bob"}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "different filters are a different cache entry")
}

// After a create, list caches bearing the entity's tags die while the fresh
// per-id value survives (it carries no index entries).
func TestAfterCreateKillsListsKeepsEntity(t *testing.T) {
	t.Parallel()

	h := newTestHelper(t)
	ctx := context.Background()

	_, err := h.CachedList(ctx, map[string]any{"owner": "alice"}, func(context.Context) ([]*widget, error) {
		return []*widget{{ID: "w1", Owner: "alice"}}, nil
	})
	require.NoError(t, err)

	created := &widget{ID: "w2", Owner: "alice"}
	h.AfterCreate(ctx, "w2", created)

	// List was invalidated via owner:alice.
	loads := 0

	_, err = h.CachedList(ctx, map[string]any{"owner": "alice"}, func(context.Context) ([]*widget, error) {
		loads++
		return []*widget{{ID: "w1"}, {ID: "w2"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	// The created entity itself reads straight from cache.
	gets := 0

	got, err := h.CachedGet(ctx, "w2", func(context.Context) (*widget, error) {
		gets++
		return created, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "w2", got.ID)
	assert.Zero(t, gets)
}

// An update invalidates the union of the old and new tag sets.
func TestAfterUpdateInvalidatesOldAndNewTags(t *testing.T) {
	t.Parallel()

	h := newTestHelper(t)
	ctx := context.Background()

	// Prime two owner-scoped lists.
	for _, owner := range []string{"alice", "bob"} {
		owner := owner

		_, err := h.CachedList(ctx, map[string]any{"owner": owner}, func(context.Context) ([]*widget, error) {
			return []*widget{{ID: "w1", Owner: owner}}, nil
		})
		require.NoError(t, err)
	}

	old := &widget{ID: "w1", Owner: "alice"}
	updated := &widget{ID: "w1", Owner: "bob"}
	h.AfterUpdate(ctx, "w1", old, updated)

	// Both owners' lists must reload.
	for _, owner := range []string{"alice", "bob"} {
		loads := 0

		_, err := h.CachedList(ctx, map[string]any{"owner": owner}, func(context.Context) ([]*widget, error) {
			loads++
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equalf(t, 1, loads, "owner %s list survived the update", owner)
	}
}

func TestAfterDeleteDropsEntity(t *testing.T) {
	t.Parallel()

	h := newTestHelper(t)
	ctx := context.Background()

	entity := &widget{ID: "w1", Owner: "alice"}

	_, err := h.CachedGet(ctx, "w1", func(context.Context) (*widget, error) {
		return entity, nil
	})
	require.NoError(t, err)

	h.AfterDelete(ctx, "w1", entity)

	loads := 0

	_, err = h.CachedGet(ctx, "w1", func(context.Context) (*widget, error) {
		loads++
		return entity, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
}

func TestNilCachePassesThrough(t *testing.T) {
	t.Parallel()

	h := NewHelper[widget](nil, widgetSpec{})
	ctx := context.Background()

	assert.False(t, h.Enabled())

	loads := 0

	for i := 0; i < 2; i++ {
		_, err := h.CachedGet(ctx, "w1", func(context.Context) (*widget, error) {
			loads++
			return &widget{ID: "w1"}, nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, loads)

	// Write hooks are no-ops without a cache.
	h.AfterCreate(ctx, "w1", &widget{ID: "w1"})
	h.AfterDelete(ctx, "w1", &widget{ID: "w1"})
	h.Invalidate(ctx, "widget:w1")
}
