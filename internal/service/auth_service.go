package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

const revokedTokenPrefix = "auth:revoked:"

// AuthService handles account registration and token issuance.
type AuthService interface {
	SignUp(ctx context.Context, req dto.SignUpRequest) (dto.AuthResponse, error)
	SignIn(ctx context.Context, req dto.SignInRequest) (dto.AuthResponse, error)
	SignOut(ctx context.Context, sess session.Session) error
	Me(ctx context.Context, sess session.Session) (dto.UserResponse, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	CurrentRole(ctx context.Context, userID string) (string, error)
}

// AuthConfig carries the token settings.
type AuthConfig struct {
	Secret          string
	TTL             time.Duration
	StaffSignupCode string
}

type authService struct {
	users     repository.UserRepository
	cache     *redis.Client
	validator *validator.Validate
	cfg       AuthConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs the auth service. A nil cache disables token revocation.
func NewAuthService(users repository.UserRepository, cache *redis.Client, validate *validator.Validate, cfg AuthConfig, logger zerolog.Logger) AuthService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &authService{
		users:     users,
		cache:     cache,
		validator: validate,
		cfg:       cfg,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

func (s *authService) SignUp(ctx context.Context, req dto.SignUpRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	role := session.NormalizeRole(req.Role)
	if role == "" {
		role = models.RoleStudent
	}
	if role != models.RoleStudent && !s.validStaffCode(req.VerificationCode) {
		return dto.AuthResponse{}, ErrInvalidVerificationCode
	}

	profile, err := createProfile(ctx, s.users, req.Email, req.Password, req.FullName, role)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	s.logger.Info().Str("user_id", profile.ID).Str("role", role).Msg("account registered")
	return s.issue(profile)
}

func (s *authService) validStaffCode(code string) bool {
	expected := strings.TrimSpace(s.cfg.StaffSignupCode)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(expected)) == 1
}

func (s *authService) SignIn(ctx context.Context, req dto.SignInRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	profile, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.issue(profile)
}

func (s *authService) SignOut(ctx context.Context, sess session.Session) error {
	if err := sess.Require(); err != nil {
		return err
	}
	if s.cache == nil || sess.TokenID == "" {
		return nil
	}

	ttl := time.Until(sess.ExpiresAt)
	if sess.ExpiresAt.IsZero() || ttl <= 0 {
		ttl = s.cfg.TTL
	}
	if err := s.cache.Set(ctx, revokedTokenPrefix+sess.TokenID, sess.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *authService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.cache == nil || tokenID == "" {
		return false, nil
	}
	n, err := s.cache.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CurrentRole reads the stored role so a role change applies to tokens issued before it.
func (s *authService) CurrentRole(ctx context.Context, userID string) (string, error) {
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", session.ErrUnauthenticated
		}
		return "", fmt.Errorf("resolve role: %w", err)
	}
	if profile.Role.Role == "" {
		return models.RoleStudent, nil
	}
	return profile.Role.Role, nil
}

func (s *authService) Me(ctx context.Context, sess session.Session) (dto.UserResponse, error) {
	if err := sess.Require(); err != nil {
		return dto.UserResponse{}, err
	}
	profile, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return dto.UserResponse{}, mapUserError(err)
	}
	return dto.NewUserResponse(profile), nil
}

func (s *authService) issue(profile models.Profile) (dto.AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)

	claims := jwt.MapClaims{
		"sub":   profile.ID,
		"role":  profile.Role.Role,
		"email": profile.Email,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return dto.AuthResponse{
		Token:     signed,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
		User:      dto.NewUserResponse(profile),
	}, nil
}

// createProfile hashes the password and stores profile and role together.
func createProfile(ctx context.Context, users repository.UserRepository, email, password, fullName, role string) (models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return models.Profile{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Profile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	profile := models.Profile{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
	}
	if err := users.Create(ctx, &profile, role); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Profile{}, ErrEmailTaken
		}
		return models.Profile{}, err
	}
	return profile, nil
}

func mapUserError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
