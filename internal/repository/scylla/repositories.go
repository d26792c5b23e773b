package scylla

import (
	"context"
	"errors"

	"verify-service/internal/models"
)

// Storage-level outcomes of conditional operations.
var (
	// ErrNotFound is returned when a record is absent, or when an
	// existence-guarded update finds nothing to apply to.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a guarded insert loses to an
	// existing record under the same key.
	ErrAlreadyExists = errors.New("record already exists")
)

// UserRepository defines the keyed-store operations for user records.
// Creation is guarded by a not-exists precondition; partial updates by an
// exists precondition. Both are single atomic statements.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	UpdateProfileFields(ctx context.Context, userID string, fields map[string]interface{}) error
	HealthCheck(ctx context.Context) error
}

// OTPRepository defines the keyed-store operations for OTP records.
// Records are keyed exclusively by otpId; multiple live records per target
// are allowed.
type OTPRepository interface {
	CreateOTP(ctx context.Context, otp *models.OTP) error
	GetOTPByID(ctx context.Context, otpID string) (*models.OTP, error)
	MarkVerified(ctx context.Context, otpID string, ttlSeconds int) error
	HealthCheck(ctx context.Context) error
}
