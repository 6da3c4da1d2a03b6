package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

func newUserFixture(t *testing.T) (UserService, *memoryActivityRepo, session.Session) {
	t.Helper()
	db := newTestDB(t, &models.Profile{}, &models.UserRole{}, &models.Complaint{})
	users := repository.NewUserRepository(db)

	admin := models.Profile{Email: "admin@example.com", FullName: "Admin", PasswordHash: "x"}
	require.NoError(t, users.Create(context.Background(), &admin, models.RoleAdmin))

	activity := &memoryActivityRepo{}
	svc := NewUserService(users, repository.NewComplaintRepository(db), NewActivityService(activity, testLogger()), testValidator(), testLogger())
	return svc, activity, session.New(admin.ID, models.RoleAdmin, admin.Email)
}

func TestUserServiceCreateAndList(t *testing.T) {
	svc, activity, admin := newUserFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin, dto.UserCreateRequest{
		Email: "mentor@example.com", Password: "supersecret", FullName: "Rajesh Mentor", Role: models.RoleStaff,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleStaff, created.Role)
	require.Len(t, activity.entries, 1)
	require.Equal(t, "***", activity.entries[0].Metadata["email"])

	_, err = svc.Create(ctx, admin, dto.UserCreateRequest{
		Email: "mentor@example.com", Password: "supersecret", FullName: "Dup", Role: models.RoleStaff,
	})
	require.ErrorIs(t, err, ErrEmailTaken)

	staff, err := svc.List(ctx, admin, dto.UserListRequest{Role: "Staff"})
	require.NoError(t, err)
	require.Len(t, staff.Items, 1)
	require.Equal(t, "mentor@example.com", staff.Items[0].Email)

	_, err = svc.List(ctx, admin, dto.UserListRequest{Role: "owner"})
	_, ok := AsValidationError(err)
	require.True(t, ok)
}

func TestUserServiceRequiresAdmin(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	staff := session.New("staff-1", models.RoleStaff, "")

	_, err := svc.List(context.Background(), staff, dto.UserListRequest{})
	require.ErrorIs(t, err, session.ErrForbidden)

	_, err = svc.UpdateRole(context.Background(), staff, "any", dto.UserRoleUpdateRequest{Role: models.RoleAdmin})
	require.ErrorIs(t, err, session.ErrForbidden)
}

func TestUserServiceUpdateRole(t *testing.T) {
	svc, activity, admin := newUserFixture(t)
	ctx := context.Background()

	student, err := svc.Create(ctx, admin, dto.UserCreateRequest{
		Email: "sneha@example.com", Password: "supersecret", FullName: "Sneha Kumar", Role: models.RoleStudent,
	})
	require.NoError(t, err)

	promoted, err := svc.UpdateRole(ctx, admin, student.ID, dto.UserRoleUpdateRequest{Role: models.RoleStaff})
	require.NoError(t, err)
	require.Equal(t, models.RoleStaff, promoted.Role)

	last := activity.entries[len(activity.entries)-1]
	require.Equal(t, ActionUserRoleChanged, last.Action)
	require.Equal(t, models.RoleStudent, last.Metadata["from"])

	_, err = svc.UpdateRole(ctx, admin, admin.UserID, dto.UserRoleUpdateRequest{Role: models.RoleStudent})
	_, ok := AsValidationError(err)
	require.True(t, ok)

	_, err = svc.UpdateRole(ctx, admin, "missing", dto.UserRoleUpdateRequest{Role: models.RoleStaff})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceProfileIncludesStats(t *testing.T) {
	svc, _, admin := newUserFixture(t)

	profile, err := svc.Profile(context.Background(), admin)
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", profile.User.Email)
	require.Zero(t, profile.Stats.Total)
}
