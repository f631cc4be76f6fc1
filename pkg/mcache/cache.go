// Package mcache implements the write-through cache with tag-based
// invalidation that sits between the repositories and Redis.
//
// Every operation is best-effort: any backend or codec error downgrades to
// "miss on read, skip store on write", so the system stays correct with the
// cache completely disabled.
package mcache

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/mredis"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTTL is applied when callers pass a non-positive TTL.
const DefaultTTL = 600 * time.Second

// Stats carries hit/miss/set/invalidation counters since process start.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Sets          int64   `json:"sets"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hitRate"`
}

// Cache is a tag-indexed write-through key/value store over a shared Redis
// backend. It maintains a bidirectional tag↔key index:
//
//	{prefix}:tag:{tag}     — set of keys bearing the tag
//	{prefix}:keytags:{key} — set of tags the key carries
//
// The index is self-healing: readers treat a missing key referenced by a tag
// set as already invalidated, and InvalidateTags converges an interrupted run
// on its next invocation.
type Cache struct {
	conn       *mredis.RedisConnection
	prefix     string
	defaultTTL time.Duration

	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	invalidations atomic.Int64
}

// New returns a Cache over the given redis connection hub.
func New(conn *mredis.RedisConnection, prefix string, defaultTTL time.Duration) *Cache {
	if prefix == "" {
		prefix = "computor"
	}

	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	return &Cache{
		conn:       conn,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}
}

// K builds a namespaced key from parts: "{prefix}:{part1}:{part2}:...".
func (c *Cache) K(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Key builds a key for an entity. Scalar ids are used verbatim; composite ids
// are collapsed to a stable hash.
func (c *Cache) Key(kind string, id any) string {
	switch v := id.(type) {
	case string:
		return c.K(kind, v)
	case int:
		return c.K(kind, strconv.Itoa(v))
	case int64:
		return c.K(kind, strconv.FormatInt(v, 10))
	default:
		return c.K(kind, pkg.StableHash(v))
	}
}

func (c *Cache) tagKey(tag string) string {
	return c.K("tag", tag)
}

func (c *Cache) keyTagsKey(key string) string {
	return c.K("keytags", key)
}

func (c *Cache) versionKey(tag string) string {
	return c.K("ver", tag)
}

func (c *Cache) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}

	return ttl
}

func (c *Cache) client(ctx context.Context) (redis.UniversalClient, error) {
	return c.conn.GetClient(ctx)
}

// GetByKey reads a value and decodes it into dest. It returns false on a miss,
// on any backend error, and on undecodable payloads (treated as a miss).
func (c *Cache) GetByKey(ctx context.Context, key string, dest any) bool {
	logger := pkg.NewLoggerFromContext(ctx)

	rds, err := c.client(ctx)
	if err != nil {
		c.misses.Add(1)
		return false
	}

	raw, err := rds.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warnf("cache GET error for key %s: %v", key, err)
		}

		c.misses.Add(1)

		return false
	}

	if err := msgpack.Unmarshal(raw, dest); err != nil {
		logger.Warnf("cache decode error for key %s: %v", key, err)
		c.misses.Add(1)

		return false
	}

	c.hits.Add(1)
	logger.Debugf("cache HIT: %s", key)

	return true
}

// SetByKey stores a value with TTL. No tag maintenance is performed.
// Unencodable payloads are rejected here, never on the read path.
func (c *Cache) SetByKey(ctx context.Context, key string, payload any, ttl time.Duration) {
	logger := pkg.NewLoggerFromContext(ctx)

	raw, err := msgpack.Marshal(payload)
	if err != nil {
		logger.Errorf("cache encode error for key %s: %v", key, err)
		return
	}

	rds, err := c.client(ctx)
	if err != nil {
		return
	}

	if err := rds.Set(ctx, key, raw, c.ttlOrDefault(ttl)).Err(); err != nil {
		logger.Errorf("cache SET error for key %s: %v", key, err)
		return
	}

	c.sets.Add(1)
	logger.Debugf("cache SET: %s (ttl=%s)", key, c.ttlOrDefault(ttl))
}

// DeleteByKey removes a key. The tag index is intentionally left alone; a tag
// set referencing a missing key reads as already invalidated.
func (c *Cache) DeleteByKey(ctx context.Context, key string) {
	logger := pkg.NewLoggerFromContext(ctx)

	rds, err := c.client(ctx)
	if err != nil {
		return
	}

	if err := rds.Del(ctx, key).Err(); err != nil {
		logger.Errorf("cache DELETE error for key %s: %v", key, err)
		return
	}

	logger.Debugf("cache DELETE: %s", key)
}

// SetWithTags stores a value and registers it under every tag. The value
// write and both index writes go out as one pipeline; partial success is
// acceptable because the index is self-healing.
func (c *Cache) SetWithTags(ctx context.Context, key string, payload any, tags []string, ttl time.Duration) {
	logger := pkg.NewLoggerFromContext(ctx)

	cleaned := dedupeTags(tags)
	if len(cleaned) == 0 {
		c.SetByKey(ctx, key, payload, ttl)
		return
	}

	raw, err := msgpack.Marshal(payload)
	if err != nil {
		logger.Errorf("cache encode error for key %s: %v", key, err)
		return
	}

	rds, err := c.client(ctx)
	if err != nil {
		return
	}

	p := rds.Pipeline()
	p.Set(ctx, key, raw, c.ttlOrDefault(ttl))

	for _, t := range cleaned {
		p.SAdd(ctx, c.tagKey(t), key)
	}

	members := make([]any, len(cleaned))
	for i, t := range cleaned {
		members[i] = t
	}

	p.SAdd(ctx, c.keyTagsKey(key), members...)

	if _, err := p.Exec(ctx); err != nil {
		logger.Errorf("cache SET with tags error for key %s: %v", key, err)
		return
	}

	c.sets.Add(1)
	logger.Debugf("cache SET with tags: %s tags=%v (ttl=%s)", key, cleaned, c.ttlOrDefault(ttl))
}

// InvalidateTags deletes every key bearing any of the given tags, removes the
// keys from every tag set they appear in, and drops the per-key side-sets and
// the tag sets themselves. Idempotent; requires no cross-key ordering from the
// backend. A concurrent SetWithTags on a tag being invalidated races benignly:
// the new key either lands in the tag set before the snapshot (and dies with
// it) or after (and survives as intended).
func (c *Cache) InvalidateTags(ctx context.Context, tags ...string) {
	logger := pkg.NewLoggerFromContext(ctx)

	cleaned := dedupeTags(tags)
	if len(cleaned) == 0 {
		return
	}

	rds, err := c.client(ctx)
	if err != nil {
		return
	}

	p := rds.Pipeline()

	var invalidated int64

	for _, t := range cleaned {
		tagSet := c.tagKey(t)

		keys, err := rds.SMembers(ctx, tagSet).Result()
		if err != nil {
			logger.Errorf("cache invalidation error reading tag %s: %v", t, err)
			continue
		}

		if len(keys) == 0 {
			p.Del(ctx, tagSet)
			continue
		}

		invalidated += int64(len(keys))

		for _, key := range keys {
			keyTags, err := rds.SMembers(ctx, c.keyTagsKey(key)).Result()
			if err == nil {
				for _, kt := range keyTags {
					p.SRem(ctx, c.tagKey(kt), key)
				}
			}

			p.Del(ctx, c.keyTagsKey(key))
			p.Del(ctx, key)
		}

		p.Del(ctx, tagSet)
	}

	if _, err := p.Exec(ctx); err != nil {
		logger.Errorf("cache invalidation error for tags %v: %v", cleaned, err)
		return
	}

	c.invalidations.Add(invalidated)
	logger.Infof("cache INVALIDATE: tags=%v keys_deleted=%d", cleaned, invalidated)
}

// GetKeysForTag returns all keys associated with a tag. Useful for debugging
// and monitoring.
func (c *Cache) GetKeysForTag(ctx context.Context, tag string) []string {
	rds, err := c.client(ctx)
	if err != nil {
		return nil
	}

	keys, err := rds.SMembers(ctx, c.tagKey(tag)).Result()
	if err != nil {
		pkg.NewLoggerFromContext(ctx).Errorf("error getting keys for tag %s: %v", tag, err)
		return nil
	}

	return keys
}

// TagVersion returns the current version counter for a tag (0 if never bumped).
func (c *Cache) TagVersion(ctx context.Context, tag string) int64 {
	rds, err := c.client(ctx)
	if err != nil {
		return 0
	}

	v, err := rds.Get(ctx, c.versionKey(tag)).Int64()
	if err != nil {
		return 0
	}

	return v
}

// BumpTag increments a tag's version counter. Keys composed with the old
// version become unreachable without touching the tag index — the economical
// invalidation path for wide-fanout projections such as dashboards.
func (c *Cache) BumpTag(ctx context.Context, tag string) int64 {
	logger := pkg.NewLoggerFromContext(ctx)

	rds, err := c.client(ctx)
	if err != nil {
		return 0
	}

	v, err := rds.Incr(ctx, c.versionKey(tag)).Result()
	if err != nil {
		logger.Errorf("error bumping tag version for %s: %v", tag, err)
		return 0
	}

	logger.Infof("cache BUMP tag: %s -> v%d", tag, v)

	return v
}

// ComposeVersionedKey builds a self-invalidating key from a base component and
// the current versions of the given tags. After BumpTag(t) no future call with
// t yields the same key.
func (c *Cache) ComposeVersionedKey(ctx context.Context, base string, tags ...string) string {
	versions := make([]string, 0, len(tags))
	for _, t := range tags {
		versions = append(versions, t+"@"+strconv.FormatInt(c.TagVersion(ctx, t), 10))
	}

	composite := map[string]any{
		"base": base,
		"v":    versions,
	}

	return c.K("v", pkg.StableHash(composite))
}

// ClearPrefix deletes every key under this cache's prefix. Primarily for
// testing and development.
func (c *Cache) ClearPrefix(ctx context.Context) {
	logger := pkg.NewLoggerFromContext(ctx)

	rds, err := c.client(ctx)
	if err != nil {
		return
	}

	var cursor uint64

	for {
		keys, next, err := rds.Scan(ctx, cursor, c.prefix+":*", 100).Result()
		if err != nil {
			logger.Errorf("error clearing cache prefix %s: %v", c.prefix, err)
			return
		}

		if len(keys) > 0 {
			if err := rds.Del(ctx, keys...).Err(); err != nil {
				logger.Errorf("error clearing cache prefix %s: %v", c.prefix, err)
				return
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	logger.Warnf("cache CLEARED: prefix=%s", c.prefix)
}

// GetStats returns hit/miss/set/invalidation counters.
func (c *Cache) GetStats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}

	return Stats{
		Hits:          hits,
		Misses:        misses,
		Sets:          c.sets.Load(),
		Invalidations: c.invalidations.Load(),
		HitRate:       rate,
	}
}

// ResetStats zeroes the counters.
func (c *Cache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.invalidations.Store(0)
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, t := range tags {
		if t == "" {
			continue
		}

		if _, ok := seen[t]; ok {
			continue
		}

		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}
