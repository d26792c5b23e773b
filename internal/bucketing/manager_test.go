package bucketing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verify-service/internal/config"
)

func TestGetUserBucket(t *testing.T) {
	cfg := &config.Config{Bucketing: config.BucketingConfig{UserBuckets: 64}}
	bm := NewBucketingManager(cfg)

	first := bm.GetUserBucket("3f0e8a1c-user")
	second := bm.GetUserBucket("3f0e8a1c-user")
	assert.Equal(t, first, second)

	for _, id := range []string{"a", "b", "c", "3f0e8a1c-user", ""} {
		bucket := bm.GetUserBucket(id)
		assert.GreaterOrEqual(t, bucket, 0)
		assert.Less(t, bucket, 64)
	}
}
