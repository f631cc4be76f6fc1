// Package cachedrepo implements the read-through / write-through / invalidate
// discipline shared by every entity repository.
//
// The contract every concrete repository must honor: the tag set attached to
// a write is a superset of every tag under which any cache store referencing
// the entity could have been made. Update therefore invalidates the union of
// the old and new entities' tags.
package cachedrepo

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/mcache"
)

// Cacheable is the capability set a concrete repository provides to
// participate in caching. Implemented per entity kind as an interface, not
// inheritance.
type Cacheable[E any] interface {
	// EntityType is the stable identifier used in keys and tags.
	EntityType() string
	// TTL is the cache expiration for this entity kind.
	TTL() time.Duration
	// EntityTags returns a superset of every tag under which any cache store
	// referencing e could have been made. May consult the store to resolve
	// cross-entity fan-out (e.g. grade → artifact → group → members).
	EntityTags(ctx context.Context, e *E) []string
	// ListTags is the analogous superset for list queries.
	ListTags(filters map[string]any) []string
}

// Helper wires a Cacheable spec to the cache. A nil cache disables every
// caching side effect; all operations pass straight through.
type Helper[E any] struct {
	cache *mcache.Cache
	spec  Cacheable[E]
}

// NewHelper returns a Helper for the given spec. cache may be nil.
func NewHelper[E any](cache *mcache.Cache, spec Cacheable[E]) *Helper[E] {
	return &Helper[E]{cache: cache, spec: spec}
}

// Enabled reports whether a cache handle is attached.
func (h *Helper[E]) Enabled() bool {
	return h.cache != nil
}

// EntityKey builds the cache key of an entity id.
func (h *Helper[E]) EntityKey(id string) string {
	return h.cache.Key(h.spec.EntityType(), id)
}

// ListKey builds the cache key of a filtered list query.
func (h *Helper[E]) ListKey(filters map[string]any) string {
	return h.cache.K(h.spec.EntityType(), "list", pkg.ParamsHash(filters))
}

// CachedGet reads an entity through the cache. On miss it loads from the
// store and re-caches the value under the entity's tags.
func (h *Helper[E]) CachedGet(ctx context.Context, id string, load func(context.Context) (*E, error)) (*E, error) {
	if !h.Enabled() {
		return load(ctx)
	}

	key := h.EntityKey(id)

	var cached E
	if h.cache.GetByKey(ctx, key, &cached) {
		return &cached, nil
	}

	e, err := load(ctx)
	if err != nil {
		return nil, err
	}

	h.cache.SetWithTags(ctx, key, e, h.spec.EntityTags(ctx, e), h.spec.TTL())

	return e, nil
}

// CachedList reads a filtered list through the cache, keyed on a stable hash
// of the filters and tagged with the list tag set.
func (h *Helper[E]) CachedList(ctx context.Context, filters map[string]any, load func(context.Context) ([]*E, error)) ([]*E, error) {
	if !h.Enabled() {
		return load(ctx)
	}

	key := h.ListKey(filters)

	var cached []*E
	if h.cache.GetByKey(ctx, key, &cached) {
		return cached, nil
	}

	list, err := load(ctx)
	if err != nil {
		return nil, err
	}

	h.cache.SetWithTags(ctx, key, list, h.spec.ListTags(filters), h.spec.TTL())

	return list, nil
}

// AfterCreate refreshes the entity's own key and invalidates its tag set so
// every list and projection that could have included the row dies. The fresh
// per-id value is set without index entries, so the invalidation cannot kill
// it.
func (h *Helper[E]) AfterCreate(ctx context.Context, id string, e *E) {
	if !h.Enabled() {
		return
	}

	h.cache.SetByKey(ctx, h.EntityKey(id), e, h.spec.TTL())
	h.cache.InvalidateTags(ctx, h.spec.EntityTags(ctx, e)...)
}

// AfterUpdate refreshes the entity's own key and invalidates the union of the
// old and new tag sets (monotone-tag-superset invariant).
func (h *Helper[E]) AfterUpdate(ctx context.Context, id string, old, updated *E) {
	if !h.Enabled() {
		return
	}

	h.cache.SetByKey(ctx, h.EntityKey(id), updated, h.spec.TTL())

	tags := h.spec.EntityTags(ctx, updated)
	if old != nil {
		tags = append(tags, h.spec.EntityTags(ctx, old)...)
	}

	h.cache.InvalidateTags(ctx, tags...)
}

// AfterDelete drops the entity's own key and invalidates its tag set.
func (h *Helper[E]) AfterDelete(ctx context.Context, id string, e *E) {
	if !h.Enabled() {
		return
	}

	h.cache.DeleteByKey(ctx, h.EntityKey(id))
	h.cache.InvalidateTags(ctx, h.spec.EntityTags(ctx, e)...)
}

// Invalidate purges arbitrary tags; used by cross-entity cascades.
func (h *Helper[E]) Invalidate(ctx context.Context, tags ...string) {
	if !h.Enabled() {
		return
	}

	h.cache.InvalidateTags(ctx, tags...)
}

// CacheAside stores an ad-hoc value (specialized lookups such as
// latest-artifact-per-group) under explicit tags.
func (h *Helper[E]) CacheAside(ctx context.Context, key string, payload any, tags []string) {
	if !h.Enabled() {
		return
	}

	h.cache.SetWithTags(ctx, key, payload, tags, h.spec.TTL())
}

// CacheAsideGet reads an ad-hoc value.
func (h *Helper[E]) CacheAsideGet(ctx context.Context, key string, dest any) bool {
	if !h.Enabled() {
		return false
	}

	return h.cache.GetByKey(ctx, key, dest)
}

// Cache exposes the underlying handle for cascade writers that need keys
// outside this entity's namespace.
func (h *Helper[E]) Cache() *mcache.Cache {
	return h.cache
}
