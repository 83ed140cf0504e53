package sqlkit

import "time"

// Cache is the out-of-scope key/value collaborator: get/set with a TTL
// plus prefix-delete. A Database keeps the one passed via WithCache and
// hands it out through Database.Cache; no package in this module reads
// from or writes to it (the Dynamic CRUD schema cache is an in-process
// map). No concrete implementation lives in this module; callers wire
// Redis, ristretto, or an in-process map.
type Cache interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte, ttl time.Duration)

	// DeletePrefix removes every key sharing prefix.
	DeletePrefix(prefix string)
}
