package mcache

import "context"

// PermissionInvalidator is the single entry point of the external permission
// cache collaborator: membership writes flush the affected user's permission
// scope alongside their views.
type PermissionInvalidator struct {
	cache *Cache
}

// NewPermissionInvalidator returns a PermissionInvalidator over the shared
// cache handle.
func NewPermissionInvalidator(cache *Cache) *PermissionInvalidator {
	return &PermissionInvalidator{cache: cache}
}

// InvalidateUserCourseMemberships purges the user's permission-scope entries
// and every view derived under them.
func (p *PermissionInvalidator) InvalidateUserCourseMemberships(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}

	p.cache.InvalidateTags(ctx, "user_permissions:"+userID, "user:"+userID)
}
