// Package cache holds short-lived byte caches shared by the HTTP tiers:
// downloaded article pages and robots.txt files.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a namespaced cache key; the value part is hashed so URLs of any
// length make fixed-size keys
func Key(namespace, value string) string {
	hash := sha256.Sum256([]byte(value))
	return "casefile:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}
