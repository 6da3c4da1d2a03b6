package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrComplaintNotFound indicates the complaint does not exist or is outside the caller's scope.
	ErrComplaintNotFound = errors.New("complaint not found")
	// ErrUserNotFound indicates the profile does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates a failed sign in.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidVerificationCode indicates a privileged sign up without the staff code.
	ErrInvalidVerificationCode = errors.New("invalid staff verification code")
	// ErrNothingToUpdate indicates an update request without any field.
	ErrNothingToUpdate = errors.New("no changes supplied")
)

// ValidationError reports field level problems of a request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, problem := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", field, problem))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError(field, problem string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: problem}}
}

// AsValidationError converts validator errors and ValidationError values into field details.
func AsValidationError(err error) (map[string]string, bool) {
	var domain *ValidationError
	if errors.As(err, &domain) {
		return domain.Fields, true
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		details := make(map[string]string, len(fieldErrors))
		for _, fe := range fieldErrors {
			details[strings.ToLower(fe.Field())] = describeTag(fe)
		}
		return details, true
	}

	return nil, false
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
