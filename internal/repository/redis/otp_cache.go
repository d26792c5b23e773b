package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"verify-service/internal/client"
	"verify-service/internal/models"
	"verify-service/internal/util"
)

const otpPrefix = "otp:"

// ErrCacheMiss is returned when no cached record exists for an otpId.
var ErrCacheMiss = errors.New("otp not in cache")

// OTPCache is a write-through copy of OTP records keyed by otpId. The store
// remains the source of truth; the cache only shortcuts the verify read.
type OTPCache struct {
	client *client.RedisClient
}

func NewOTPCache(client *client.RedisClient) *OTPCache {
	return &OTPCache{client: client}
}

// SetOTP caches a record under otp:{otpId} with the record's remaining TTL.
func (c *OTPCache) SetOTP(ctx context.Context, otp *models.OTP, ttl time.Duration) error {
	payload, err := json.Marshal(otp)
	if err != nil {
		return fmt.Errorf("failed to encode OTP for cache: %w", err)
	}

	key := otpPrefix + otp.OTPID
	if err := c.client.Set(ctx, key, payload, ttl); err != nil {
		util.Error("Failed to cache OTP",
			zap.String("otp_id", otp.OTPID),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to cache OTP: %w", err)
	}

	util.Debug("OTP cached",
		zap.String("otp_id", otp.OTPID),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *OTPCache) GetOTP(ctx context.Context, otpID string) (*models.OTP, error) {
	raw, err := c.client.Get(ctx, otpPrefix+otpID)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, ErrCacheMiss
		}
		util.Error("Failed to read OTP from cache",
			zap.String("otp_id", otpID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read OTP from cache: %w", err)
	}

	otp := &models.OTP{}
	if err := json.Unmarshal([]byte(raw), otp); err != nil {
		// A corrupt entry must not block verification against the store
		_ = c.client.Del(ctx, otpPrefix+otpID)
		return nil, ErrCacheMiss
	}

	return otp, nil
}

// MarkVerified refreshes the cached copy after the store accepted the flip.
func (c *OTPCache) MarkVerified(ctx context.Context, otp *models.OTP) error {
	remaining := time.Until(time.Unix(otp.ExpiresAt, 0))
	if remaining <= 0 {
		return c.DeleteOTP(ctx, otp.OTPID)
	}
	return c.SetOTP(ctx, otp, remaining)
}

func (c *OTPCache) DeleteOTP(ctx context.Context, otpID string) error {
	if err := c.client.Del(ctx, otpPrefix+otpID); err != nil {
		util.Error("Failed to delete OTP from cache",
			zap.String("otp_id", otpID),
			zap.Error(err))
		return fmt.Errorf("failed to delete OTP from cache: %w", err)
	}
	return nil
}
