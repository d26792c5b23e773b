package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPExpired(t *testing.T) {
	now := time.Now().UTC()
	otp := &OTP{ExpiresAt: now.Add(OTPTTL).Unix(), CreatedAt: now}

	assert.False(t, otp.Expired(now))
	assert.False(t, otp.Expired(now.Add(OTPTTL)))
	assert.True(t, otp.Expired(now.Add(OTPTTL+time.Second)))
}
