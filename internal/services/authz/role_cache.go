package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/planfold/planfold/internal/services/organization"
	"github.com/planfold/planfold/internal/services/project"
)

const memberCacheTTL = 5 * time.Minute

// cachedMember wraps the membership row so a cached "no membership" answer
// is distinguishable from a cache miss
type cachedMember struct {
	Member *organization.Member `json:"member"`
}

// CachedDirectory fronts a Directory with redis for the organization
// membership lookup, the hottest read on every request. Project roles and
// owner counts stay uncached; the owner count guards destructive paths and
// must be fresh. Cache failures fall through to the source.
type CachedDirectory struct {
	source Directory
	client *redis.Client
}

// NewCachedDirectory wraps source with a redis-backed membership cache
func NewCachedDirectory(source Directory, client *redis.Client) *CachedDirectory {
	return &CachedDirectory{source: source, client: client}
}

func memberKey(organizationID, userID uuid.UUID) string {
	return fmt.Sprintf("authz:org_member:%s:%s", organizationID, userID)
}

func (d *CachedDirectory) OrgMember(ctx context.Context, organizationID, userID uuid.UUID) (*organization.Member, error) {
	key := memberKey(organizationID, userID)

	raw, err := d.client.Get(ctx, key).Result()
	if err == nil {
		var cached cachedMember
		if err := sonic.UnmarshalString(raw, &cached); err == nil {
			return cached.Member, nil
		}
	} else if err != redis.Nil {
		slog.Warn("membership cache read failed", "error", err)
	}

	m, err := d.source.OrgMember(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}

	if encoded, err := sonic.MarshalString(cachedMember{Member: m}); err == nil {
		if err := d.client.Set(ctx, key, encoded, memberCacheTTL).Err(); err != nil {
			slog.Warn("membership cache write failed", "error", err)
		}
	}

	return m, nil
}

func (d *CachedDirectory) OrgOwnerCount(ctx context.Context, organizationID uuid.UUID) (int, error) {
	return d.source.OrgOwnerCount(ctx, organizationID)
}

func (d *CachedDirectory) ProjectRole(ctx context.Context, projectID, userID uuid.UUID) (project.MemberRole, bool, error) {
	return d.source.ProjectRole(ctx, projectID, userID)
}

// Invalidate drops the cached membership for one user in one organization.
// Wired to the membership change notifications from the database.
func (d *CachedDirectory) Invalidate(ctx context.Context, organizationID, userID uuid.UUID) {
	if err := d.client.Del(ctx, memberKey(organizationID, userID)).Err(); err != nil {
		slog.Warn("membership cache invalidation failed", "error", err)
	}
}

// InvalidateAll drops every cached membership. Used after a listener
// reconnect, when notifications may have been missed.
func (d *CachedDirectory) InvalidateAll(ctx context.Context) {
	iter := d.client.Scan(ctx, 0, "authz:org_member:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := d.client.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Warn("membership cache invalidation failed", "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("membership cache scan failed", "error", err)
	}
}
