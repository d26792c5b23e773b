package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"verify-service/internal/models"
	"verify-service/internal/util"
)

type otpRepository struct {
	client *ScyllaClient
}

func NewOTPRepository(client *ScyllaClient, logger *zap.Logger) OTPRepository {
	return &otpRepository{
		client: client,
	}
}

// CreateOTP writes a new record unconditionally. No uniqueness check
// against existing targets: multiple outstanding codes per target coexist.
// The row TTL matches the logical expiry so the store collects it.
func (r *otpRepository) CreateOTP(ctx context.Context, otp *models.OTP) error {
	ttl := int(otp.ExpiresAt - otp.CreatedAt.Unix())
	if ttl <= 0 {
		ttl = int(models.OTPTTL / time.Second)
	}

	query := r.client.Prepared.CreateOTP.WithContext(ctx).Bind(
		otp.OTPID, otp.Target, otp.Type, otp.OTPHash, otp.Verified,
		otp.ExpiresAt, otp.CreatedAt, ttl)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to create OTP record",
			zap.String("otp_id", otp.OTPID),
			zap.String("otp_type", otp.Type),
			zap.Error(err))
		return fmt.Errorf("failed to create OTP: %w", err)
	}

	util.Info("OTP record created",
		zap.String("otp_id", otp.OTPID),
		zap.String("otp_type", otp.Type),
		zap.Int64("expires_at", otp.ExpiresAt))

	return nil
}

func (r *otpRepository) GetOTPByID(ctx context.Context, otpID string) (*models.OTP, error) {
	otp := &models.OTP{}

	query := r.client.Prepared.GetOTPByID.WithContext(ctx).Bind(otpID)

	err := r.client.ScanWithRetry(query,
		&otp.OTPID, &otp.Target, &otp.Type, &otp.OTPHash, &otp.Verified,
		&otp.ExpiresAt, &otp.CreatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get OTP by ID",
			zap.String("otp_id", otpID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get OTP by ID: %w", err)
	}

	return otp, nil
}

// MarkVerified flips the verified flag behind an exists precondition, so a
// record collected at expiry surfaces as ErrNotFound rather than an upsert.
// The remaining TTL is re-applied; LWT updates write fresh cells.
func (r *otpRepository) MarkVerified(ctx context.Context, otpID string, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}

	applied, err := r.client.Prepared.MarkOTPVerified.WithContext(ctx).
		Bind(ttlSeconds, otpID).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to mark OTP verified",
			zap.String("otp_id", otpID),
			zap.Error(err))
		return fmt.Errorf("failed to mark OTP verified: %w", err)
	}
	if !applied {
		return ErrNotFound
	}

	util.Info("OTP marked verified", zap.String("otp_id", otpID))
	return nil
}

func (r *otpRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck()
}
