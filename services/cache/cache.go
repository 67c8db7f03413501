package cache

import (
	"time"
)

// CacheService is a generic byte cache. The crawlers use it as a
// read-through cache of already-persisted hemnet IDs so that re-crawls
// do not hit the database for every known listing.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
