package dto

import (
	"time"

	"github.com/noah-isme/brovoice-api/internal/models"
)

// SignUpRequest registers a new account. Staff and admin roles need the verification code.
type SignUpRequest struct {
	Email            string `json:"email" validate:"required,email,max=255"`
	Password         string `json:"password" validate:"required,min=8,max=72"`
	FullName         string `json:"full_name" validate:"required,min=2,max=255"`
	Role             string `json:"role" validate:"omitempty,oneof=student staff admin"`
	VerificationCode string `json:"verification_code" validate:"omitempty,max=128"`
}

// SignInRequest carries credentials.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of a profile.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse maps a profile with its preloaded role.
func NewUserResponse(profile models.Profile) UserResponse {
	return UserResponse{
		ID:        profile.ID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		Role:      profile.Role.Role,
		CreatedAt: profile.CreatedAt,
	}
}

// AuthResponse is returned on sign-up and sign-in.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserListRequest holds admin user listing filters.
type UserListRequest struct {
	Search   string
	Role     string
	Page     int
	PageSize int
}

// UserListResponse wraps a page of users.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// UserCreateRequest lets an administrator provision an account directly.
type UserCreateRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,min=2,max=255"`
	Role     string `json:"role" validate:"required,oneof=student staff admin"`
}

// UserRoleUpdateRequest changes the single role of a user.
type UserRoleUpdateRequest struct {
	Role string `json:"role" validate:"required,oneof=student staff admin"`
}

// ProfileResponse is the profile page: the user plus the complaint counts visible to them.
type ProfileResponse struct {
	User  UserResponse `json:"user"`
	Stats StatusCounts `json:"stats"`
}
