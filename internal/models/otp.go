package models

import "time"

// OTP delivery channel types.
const (
	OTPTypeMobile = "mobile"
	OTPTypeEmail  = "email"
)

// OTPTTL is the lifetime of an issued code. The store carries the same TTL
// so expired records are garbage-collected without a sweeper.
const OTPTTL = 600 * time.Second

// OTP is a single issued one-time passcode. OTPHash is the SHA-256 hex
// digest of the 6-digit code; the plaintext code is never persisted.
type OTP struct {
	OTPID     string    `json:"otpId" db:"otp_id"`
	Target    string    `json:"target" db:"target"`
	Type      string    `json:"type" db:"otp_type"`
	OTPHash   string    `json:"otp" db:"otp_hash"`
	Verified  bool      `json:"verified" db:"verified"`
	ExpiresAt int64     `json:"expiresAt" db:"expires_at"` // epoch seconds
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Expired reports whether the code's expiry watermark has passed.
func (o *OTP) Expired(now time.Time) bool {
	return now.Unix() > o.ExpiresAt
}
