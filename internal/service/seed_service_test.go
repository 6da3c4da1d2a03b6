package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

func newSeedFixture(t *testing.T, enabled bool) (SeedService, repository.ComplaintRepository, repository.UserRepository) {
	t.Helper()
	db := newTestDB(t, &models.Profile{}, &models.UserRole{}, &models.Complaint{})
	users := repository.NewUserRepository(db)
	complaints := repository.NewComplaintRepository(db)
	return NewSeedService(users, complaints, enabled, "seed-token", "brovoice-demo", testLogger()), complaints, users
}

func TestSeedServiceTokenGuard(t *testing.T) {
	disabled, _, _ := newSeedFixture(t, false)
	_, err := disabled.SeedDemo(context.Background(), "seed-token")
	require.ErrorIs(t, err, ErrSeedDisabled)

	enabled, _, _ := newSeedFixture(t, true)
	_, err = enabled.SeedDemo(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrSeedUnauthorized)
}

func TestSeedServiceLoadsDemoDataOnce(t *testing.T) {
	svc, complaints, users := newSeedFixture(t, true)
	ctx := context.Background()

	summary, err := svc.SeedDemo(ctx, "seed-token")
	require.NoError(t, err)
	require.Equal(t, int64(len(demoComplaints)), summary.Complaints)
	require.Equal(t, 11, summary.Users)

	again, err := svc.SeedDemo(ctx, "seed-token")
	require.NoError(t, err)
	require.Zero(t, again.Users)
	require.Zero(t, again.Complaints)

	staff := session.New("staff-1", models.RoleStaff, "")
	all, _, err := complaints.List(ctx, staff, repository.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, all, len(demoComplaints))
	require.Equal(t, 50, ResolutionRate(all))

	rahul, err := users.FindByEmail(ctx, "rahul.sharma@demo.brovoice.dev")
	require.NoError(t, err)
	own, _, err := complaints.List(ctx, session.New(rahul.ID, models.RoleStudent, ""), repository.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, "BRO-A2F9", own[0].TicketID)
	require.Nil(t, own[0].InternalNotes)

	admin, err := users.FindByEmail(ctx, "program.admin@demo.brovoice.dev")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role.Role)
}
