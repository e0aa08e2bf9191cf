package ratelimit

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Key derives the store key for an actor/action pair.
func Key(actorID, action string) string {
	return fmt.Sprintf("ratelimit:%s:%s", action, actorID)
}

// IPKey derives the store key for an IP/action pair. The IP is hashed with
// xxhash before embedding so raw addresses never appear as lookup keys.
// This is a storage-hygiene measure, not a security boundary.
func IPKey(ip, action string) string {
	return fmt.Sprintf("ratelimit:%s:ip:%016x", action, xxhash.Sum64String(ip))
}
