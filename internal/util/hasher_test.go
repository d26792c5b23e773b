package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashOTPDeterministic(t *testing.T) {
	first := HashOTP("482913")
	second := HashOTP("482913")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, HashOTP("482914"))
}

func TestVerifyOTPHash(t *testing.T) {
	stored := HashOTP("482913")

	assert.True(t, VerifyOTPHash("482913", stored))
	assert.False(t, VerifyOTPHash("482914", stored))
	assert.False(t, VerifyOTPHash("482913", "not-a-digest"))
}

func TestGenerateOTPCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[1-9][0-9]{5}$`)

	for i := 0; i < 100; i++ {
		code, err := GenerateOTPCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}
