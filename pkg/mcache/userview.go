package mcache

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg"
)

// UserViewTTL is the default expiration for per-user projection values.
const UserViewTTL = 300 * time.Second

// userViewKey builds "{prefix}:user_view:{user_id}:{view_type}[:{view_id}]".
func (c *Cache) userViewKey(userID, viewType, viewID string) string {
	if viewID != "" {
		return c.K("user_view", userID, viewType, viewID)
	}

	return c.K("user_view", userID, viewType)
}

// GetUserView reads a cached per-user projection into dest. Returns false on
// miss or any backend error.
func (c *Cache) GetUserView(ctx context.Context, userID, viewType, viewID string, dest any) bool {
	return c.GetByKey(ctx, c.userViewKey(userID, viewType, viewID), dest)
}

// SetUserView caches a per-user projection with the canonical tag scheme:
//
//	user:{user_id}
//	user:{user_id}:{view_type}
//	view:{view_type}
//	user:{user_id}:{view_type}:{view_id}   (when viewID is set)
//	{entity_type}:{entity_id}              (one per relatedIDs entry)
//
// relatedIDs pins the projection to the entities it was derived from so
// entity writes can purge it by tag.
func (c *Cache) SetUserView(ctx context.Context, userID, viewType string, data any, viewID string, ttl time.Duration, relatedIDs map[string]string) {
	tags := []string{
		"user:" + userID,
		"user:" + userID + ":" + viewType,
		"view:" + viewType,
	}

	if viewID != "" {
		tags = append(tags, "user:"+userID+":"+viewType+":"+viewID)
	}

	for _, entityType := range pkg.SortedKeys(relatedIDs) {
		entityID := relatedIDs[entityType]
		if entityID == "" {
			tags = append(tags, entityType)
			continue
		}

		tags = append(tags, entityType+":"+entityID)
	}

	if ttl <= 0 {
		ttl = UserViewTTL
	}

	c.SetWithTags(ctx, c.userViewKey(userID, viewType, viewID), data, tags, ttl)
}

// InvalidateUserViews purges user-view projections with flexible targeting:
// by user, by view type across users, by (user, view type), and/or by related
// entity.
func (c *Cache) InvalidateUserViews(ctx context.Context, userID, viewType, entityType, entityID string) {
	var tags []string

	switch {
	case userID != "" && viewType != "":
		tags = append(tags, "user:"+userID+":"+viewType)
	case userID != "":
		tags = append(tags, "user:"+userID)
	case viewType != "":
		tags = append(tags, "view:"+viewType)
	}

	if entityType != "" && entityID != "" {
		tags = append(tags, entityType+":"+entityID)
	}

	if len(tags) == 0 {
		return
	}

	c.InvalidateTags(ctx, tags...)
}
