package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/handler"
	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/session"
)

type mockUserService struct {
	lastList dto.UserListRequest
	lastRole dto.UserRoleUpdateRequest
	lastID   string
	err      error
}

func (m *mockUserService) List(_ context.Context, _ session.Session, req dto.UserListRequest) (dto.UserListResponse, error) {
	m.lastList = req
	return dto.UserListResponse{Items: []dto.UserResponse{{ID: "u-1"}}, Pagination: dto.NewPaginationMeta(1, 20, 1)}, nil
}

func (m *mockUserService) Create(_ context.Context, _ session.Session, req dto.UserCreateRequest) (dto.UserResponse, error) {
	if m.err != nil {
		return dto.UserResponse{}, m.err
	}
	return dto.UserResponse{ID: "u-2", Email: req.Email, Role: req.Role}, nil
}

func (m *mockUserService) UpdateRole(_ context.Context, _ session.Session, id string, req dto.UserRoleUpdateRequest) (dto.UserResponse, error) {
	m.lastID, m.lastRole = id, req
	if m.err != nil {
		return dto.UserResponse{}, m.err
	}
	return dto.UserResponse{ID: id, Role: req.Role}, nil
}

func (m *mockUserService) Profile(_ context.Context, sess session.Session) (dto.ProfileResponse, error) {
	return dto.ProfileResponse{User: dto.UserResponse{ID: sess.UserID}}, nil
}

func newUserApp(svc service.UserService) *fiber.App {
	app := fiber.New()
	h := handler.NewUserHandler(svc, testLogger())
	admin := app.Group("/admin", asUser("admin-1", "admin"))
	h.RegisterProfile(admin)
	h.RegisterAdmin(admin.Group("/users"))
	return app
}

func TestUserHandlerListAndRoleChange(t *testing.T) {
	svc := &mockUserService{}
	app := newUserApp(svc)

	resp, _ := doJSON(t, app, http.MethodGet, "/admin/users?search=rahul&role=student", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "rahul", svc.lastList.Search)
	require.Equal(t, "student", svc.lastList.Role)

	resp, _ = doJSON(t, app, http.MethodPatch, "/admin/users/u-9/role", map[string]string{"role": "staff"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "u-9", svc.lastID)
	require.Equal(t, "staff", svc.lastRole.Role)

	resp, _ = doJSON(t, app, http.MethodGet, "/admin/profile", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUserHandlerCreateConflict(t *testing.T) {
	app := newUserApp(&mockUserService{err: service.ErrEmailTaken})
	resp, env := doJSON(t, app, http.MethodPost, "/admin/users", map[string]string{"email": "dup@example.com"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, service.ErrEmailTaken.Error(), env.Message)
}

func TestUserHandlerUpdateRoleMissingUser(t *testing.T) {
	app := newUserApp(&mockUserService{err: service.ErrUserNotFound})
	resp, _ := doJSON(t, app, http.MethodPatch, "/admin/users/ghost/role", map[string]string{"role": "staff"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
