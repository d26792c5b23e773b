package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"verify-service/internal/config"
)

// BucketingManager maps user identifiers to a fixed number of hash buckets.
// The users table is partitioned by (user_bucket, user_id); the bucket is
// always derivable from the id, so records stay logically keyed by id alone.
type BucketingManager struct {
	userBuckets int
	hasherPool  sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		userBuckets: cfg.Bucketing.UserBuckets,
	}

	// Pool of hash states to avoid per-request allocation
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// GetUserBucket returns the consistent bucket for a user id, in
// [0, userBuckets).
func (bm *BucketingManager) GetUserBucket(userID string) int {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write([]byte(userID))

	return int(hasher.Sum64() % uint64(bm.userBuckets))
}

// UserBuckets reports the configured bucket count.
func (bm *BucketingManager) UserBuckets() int {
	return bm.userBuckets
}
