package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

func TestAnalyticsServiceAggregatesAndCaches(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	db := newTestDB(t, &models.Complaint{})

	now := time.Date(2025, 11, 11, 12, 0, 0, 0, time.UTC)
	seed := []models.Complaint{
		{TicketID: "BRO-A2F9", Category: models.CategoryMentorUnresponsive, Status: models.ComplaintStatusInProgress, CreatedAt: now.Add(-48 * time.Hour), UpdatedAt: now.Add(-24 * time.Hour)},
		{TicketID: "BRO-K3L7", Category: models.CategoryPlatformBug, Status: models.ComplaintStatusResolved, CreatedAt: now.Add(-10 * 24 * time.Hour), UpdatedAt: now.Add(-10*24*time.Hour + 2*time.Hour)},
		{TicketID: "BRO-T4R8", Category: models.CategoryDoubtNotCleared, Status: models.ComplaintStatusResolved, CreatedAt: now.Add(-72 * time.Hour), UpdatedAt: now.Add(-68 * time.Hour)},
		{TicketID: "BRO-X8Y2", Category: models.CategoryDoubtNotCleared, Status: models.ComplaintStatusNew, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)},
	}
	for i := range seed {
		seed[i].UserID = "student-1"
		seed[i].Title = seed[i].TicketID
		seed[i].Description = validDescription
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	svc := NewAnalyticsService(repository.NewComplaintRepository(db), redisClient, time.Minute, testLogger()).(*analyticsService)
	svc.now = func() time.Time { return now }
	staff := session.New("staff-1", models.RoleStaff, "")

	first, err := svc.Summary(context.Background(), staff)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, 4, first.Total)
	require.Equal(t, 50, first.ResolutionRate)
	require.Equal(t, 3, first.AverageResolutionHr)
	require.Equal(t, 3, first.LastSevenDays)
	require.Equal(t, 2, first.StatusCounts.Resolved)
	require.Equal(t, models.CategoryDoubtNotCleared, first.TopCategories[0].Category)
	require.Equal(t, 50, first.TopCategories[0].Percentage)
	require.True(t, mini.Exists(analyticsCacheKey))

	second, err := svc.Summary(context.Background(), staff)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.Total, second.Total)

	svc.Invalidate(context.Background())
	require.False(t, mini.Exists(analyticsCacheKey))
}

func TestAnalyticsServiceRequiresStaff(t *testing.T) {
	db := newTestDB(t, &models.Complaint{})
	svc := NewAnalyticsService(repository.NewComplaintRepository(db), nil, time.Minute, testLogger())

	_, err := svc.Summary(context.Background(), session.New("s-1", models.RoleStudent, ""))
	require.ErrorIs(t, err, session.ErrForbidden)

	empty, err := svc.Summary(context.Background(), session.New("a-1", models.RoleAdmin, ""))
	require.NoError(t, err)
	require.Zero(t, empty.Total)
	require.Zero(t, empty.ResolutionRate)
	require.Empty(t, empty.TopCategories)
}
