package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

// UserService manages accounts on behalf of administrators.
type UserService interface {
	List(ctx context.Context, sess session.Session, req dto.UserListRequest) (dto.UserListResponse, error)
	Create(ctx context.Context, sess session.Session, req dto.UserCreateRequest) (dto.UserResponse, error)
	UpdateRole(ctx context.Context, sess session.Session, id string, req dto.UserRoleUpdateRequest) (dto.UserResponse, error)
	Profile(ctx context.Context, sess session.Session) (dto.ProfileResponse, error)
}

type userService struct {
	users      repository.UserRepository
	complaints repository.ComplaintRepository
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewUserService constructs the user management service.
func NewUserService(users repository.UserRepository, complaints repository.ComplaintRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:      users,
		complaints: complaints,
		activity:   activity,
		validator:  validate,
		logger:     logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, sess session.Session, req dto.UserListRequest) (dto.UserListResponse, error) {
	if err := sess.Require(models.RoleAdmin); err != nil {
		return dto.UserListResponse{}, err
	}

	role := session.NormalizeRole(req.Role)
	if role != "" && !models.IsValidRole(role) {
		return dto.UserListResponse{}, newValidationError("role", "must be one of: student staff admin")
	}

	profiles, total, err := s.users.List(ctx, repository.UserFilter{
		Search:   strings.TrimSpace(req.Search),
		Role:     role,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.UserListResponse{}, err
	}

	items := make([]dto.UserResponse, 0, len(profiles))
	for _, profile := range profiles {
		items = append(items, dto.NewUserResponse(profile))
	}

	return dto.UserListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *userService) Create(ctx context.Context, sess session.Session, req dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := sess.Require(models.RoleAdmin); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	profile, err := createProfile(ctx, s.users, req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		return dto.UserResponse{}, err
	}

	s.record(ctx, ActivityEntry{
		Actor:      sess,
		Action:     ActionUserCreated,
		EntityType: "user",
		EntityID:   profile.ID,
		Metadata:   map[string]interface{}{"role": req.Role, "email": profile.Email},
	})
	return dto.NewUserResponse(profile), nil
}

func (s *userService) UpdateRole(ctx context.Context, sess session.Session, id string, req dto.UserRoleUpdateRequest) (dto.UserResponse, error) {
	if err := sess.Require(models.RoleAdmin); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}
	if id == sess.UserID && req.Role != models.RoleAdmin {
		return dto.UserResponse{}, newValidationError("role", "administrators cannot demote themselves")
	}

	previous, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, mapUserError(err)
	}

	profile, err := s.users.UpdateRole(ctx, id, req.Role)
	if err != nil {
		return dto.UserResponse{}, mapUserError(err)
	}

	s.record(ctx, ActivityEntry{
		Actor:      sess,
		Action:     ActionUserRoleChanged,
		EntityType: "user",
		EntityID:   id,
		Metadata:   map[string]interface{}{"from": previous.Role.Role, "to": req.Role},
	})
	s.logger.Info().Str("user_id", id).Str("role", req.Role).Msg("user role changed")
	return dto.NewUserResponse(profile), nil
}

func (s *userService) Profile(ctx context.Context, sess session.Session) (dto.ProfileResponse, error) {
	if err := sess.Require(); err != nil {
		return dto.ProfileResponse{}, err
	}

	profile, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return dto.ProfileResponse{}, mapUserError(err)
	}

	complaints, _, err := s.complaints.List(ctx, sess, repository.ComplaintFilter{})
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	return dto.ProfileResponse{User: dto.NewUserResponse(profile), Stats: CountByStatus(complaints)}, nil
}

func (s *userService) record(ctx context.Context, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record user activity")
	}
}
