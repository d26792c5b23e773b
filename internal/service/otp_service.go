package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"verify-service/internal/client"
	"verify-service/internal/delivery"
	"verify-service/internal/models"
	redisrepo "verify-service/internal/repository/redis"
	"verify-service/internal/repository/scylla"
	"verify-service/internal/util"
)

// IssueResult is returned from Issue. The plaintext code is delivered
// out-of-band and never appears here.
type IssueResult struct {
	OTPID     string `json:"otpId"`
	ExpiresIn int    `json:"expiresIn"`
}

// VerifyResult reports a successful verification.
type VerifyResult struct {
	OTPID    string `json:"otpId"`
	Verified bool   `json:"verified"`
}

type OTPService struct {
	otpRepo  scylla.OTPRepository
	cache    *redisrepo.OTPCache
	gateway  delivery.Gateway
	producer *client.KafkaProducer
	audit    *client.ClickHouseClient
	logger   *zap.Logger
}

// NewOTPService wires the issuer/verifier. producer and audit may be nil;
// both are advisory sinks.
func NewOTPService(
	otpRepo scylla.OTPRepository,
	cache *redisrepo.OTPCache,
	gateway delivery.Gateway,
	producer *client.KafkaProducer,
	audit *client.ClickHouseClient,
	logger *zap.Logger,
) *OTPService {
	return &OTPService{
		otpRepo:  otpRepo,
		cache:    cache,
		gateway:  gateway,
		producer: producer,
		audit:    audit,
		logger:   logger,
	}
}

// Issue generates a fresh 6-digit code for the target, persists only its
// digest, and hands the plaintext to the delivery gateway. A delivery
// failure surfaces as a server error but leaves the record in place so a
// retry can resend without regenerating.
func (s *OTPService) Issue(ctx context.Context, otpType, target string) (*IssueResult, error) {
	if otpType != models.OTPTypeMobile && otpType != models.OTPTypeEmail {
		return nil, fmt.Errorf("%w: type must be one of: mobile, email", ErrInvalidInput)
	}
	if target == "" {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidInput)
	}

	code, err := util.GenerateOTPCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	now := time.Now().UTC()
	otp := &models.OTP{
		OTPID:     uuid.New().String(),
		Target:    target,
		Type:      otpType,
		OTPHash:   util.HashOTP(code),
		Verified:  false,
		ExpiresAt: now.Add(models.OTPTTL).Unix(),
		CreatedAt: now,
	}

	if err := s.otpRepo.CreateOTP(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to store OTP: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetOTP(ctx, otp, models.OTPTTL); err != nil {
			// Cache is best-effort; the store remains authoritative
			util.Warn("OTP cache write failed", zap.String("otp_id", otp.OTPID), zap.Error(err))
		}
	}

	if err := s.gateway.Send(ctx, target, otpType, code); err != nil {
		util.Error("OTP delivery failed, record retained",
			zap.String("otp_id", otp.OTPID),
			zap.String("otp_type", otpType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to deliver OTP: %w", err)
	}

	s.emit(client.EventOTPIssued, otp.OTPID, map[string]interface{}{
		"otpType":   otpType,
		"expiresAt": otp.ExpiresAt,
	})
	s.recordAudit("otp", otp.OTPID, "issued", otpType)

	util.Info("OTP issued",
		zap.String("otp_id", otp.OTPID),
		zap.String("otp_type", otpType))

	return &IssueResult{
		OTPID:     otp.OTPID,
		ExpiresIn: int(models.OTPTTL / time.Second),
	}, nil
}

// Verify checks a candidate code against the stored digest. Re-verifying an
// already-verified record with the correct code succeeds.
func (s *OTPService) Verify(ctx context.Context, otpID, code string) (*VerifyResult, error) {
	if otpID == "" {
		return nil, fmt.Errorf("%w: otpId is required", ErrInvalidInput)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: otp is required", ErrInvalidInput)
	}

	otp, err := s.lookupOTP(ctx, otpID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if otp.Expired(now) {
		return nil, fmt.Errorf("%w: otp %s", ErrOTPExpired, otpID)
	}
	if !util.VerifyOTPHash(code, otp.OTPHash) {
		return nil, fmt.Errorf("%w: otp %s", ErrOTPMismatch, otpID)
	}

	if !otp.Verified {
		remaining := int(otp.ExpiresAt - now.Unix())
		if err := s.otpRepo.MarkVerified(ctx, otpID, remaining); err != nil {
			if errors.Is(err, scylla.ErrNotFound) {
				// Expired out from under us between read and write
				return nil, fmt.Errorf("%w: otp %s", ErrNotFound, otpID)
			}
			return nil, fmt.Errorf("failed to mark OTP verified: %w", err)
		}

		otp.Verified = true
		if s.cache != nil {
			if err := s.cache.MarkVerified(ctx, otp); err != nil {
				util.Warn("OTP cache refresh failed", zap.String("otp_id", otpID), zap.Error(err))
			}
		}

		s.emit(client.EventOTPVerified, otpID, map[string]interface{}{
			"otpType": otp.Type,
		})
		s.recordAudit("otp", otpID, "verified", otp.Type)
	}

	util.Info("OTP verified", zap.String("otp_id", otpID))

	return &VerifyResult{OTPID: otpID, Verified: true}, nil
}

// lookupOTP reads the cache first and falls back to the store. Absence in
// both is ErrNotFound; TTL-collected records look identical to never-issued
// ones.
func (s *OTPService) lookupOTP(ctx context.Context, otpID string) (*models.OTP, error) {
	if s.cache != nil {
		otp, err := s.cache.GetOTP(ctx, otpID)
		if err == nil {
			return otp, nil
		}
		if !errors.Is(err, redisrepo.ErrCacheMiss) {
			util.Warn("OTP cache read failed", zap.String("otp_id", otpID), zap.Error(err))
		}
	}

	otp, err := s.otpRepo.GetOTPByID(ctx, otpID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, fmt.Errorf("%w: otp %s", ErrNotFound, otpID)
		}
		return nil, fmt.Errorf("failed to look up OTP: %w", err)
	}
	return otp, nil
}

func (s *OTPService) emit(eventType, key string, payload interface{}) {
	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.producer.PublishEvent(ctx, eventType, key, payload); err != nil {
			util.Warn("Failed to publish domain event",
				zap.String("event_type", eventType),
				zap.Error(err))
		}
	}()
}

func (s *OTPService) recordAudit(entity, entityID, action, detail string) {
	if s.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.RecordAudit(ctx, entity, entityID, action, detail); err != nil {
			util.Warn("Failed to record audit event",
				zap.String("entity", entity),
				zap.String("action", action),
				zap.Error(err))
		}
	}()
}
