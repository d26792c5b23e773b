package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// HashOTP returns the hex SHA-256 digest of a one-time code. The digest is
// deterministic so a stored hash can be compared against a re-hashed
// candidate without keeping the plaintext anywhere.
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// VerifyOTPHash compares a candidate code against a stored digest in
// constant time.
func VerifyOTPHash(code, storedHash string) bool {
	candidate := HashOTP(code)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}

// GenerateOTPCode returns a uniformly distributed 6-digit code from
// [100000, 999999] using the platform CSPRNG.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
