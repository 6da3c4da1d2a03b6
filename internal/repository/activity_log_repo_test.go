package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brovoice-api/internal/models"
)

func TestActivityLogRepositoryFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t, &models.ActivityLog{})
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	entries := []models.ActivityLog{
		{ActorID: "staff-1", ActorRole: "staff", Action: "complaint.updated", EntityType: "complaint", EntityID: "c-1", CreatedAt: now.Add(-48 * time.Hour)},
		{ActorID: "staff-1", ActorRole: "staff", Action: "complaint.updated", EntityType: "complaint", EntityID: "c-2", CreatedAt: now.Add(-2 * time.Hour)},
		{ActorID: "admin-1", ActorRole: "admin", Action: "user.role_changed", EntityType: "user", EntityID: "u-1", CreatedAt: now.Add(-1 * time.Hour)},
		{ActorID: "staff-1", ActorRole: "staff", Action: "complaint.updated", EntityType: "complaint", EntityID: "c-3", CreatedAt: now},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	items, total, err := repo.List(ctx, ActivityLogFilter{EntityType: "complaint", Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	require.Equal(t, "c-3", items[0].EntityID)
	require.Equal(t, "c-2", items[1].EntityID)

	items, _, err = repo.List(ctx, ActivityLogFilter{EntityType: "complaint", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "c-1", items[0].EntityID)

	since := now.Add(-24 * time.Hour)
	items, total, err = repo.List(ctx, ActivityLogFilter{ActorID: "staff-1", Since: &since})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	items, total, err = repo.List(ctx, ActivityLogFilter{Action: "user.role_changed"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "admin", items[0].ActorRole)
}
