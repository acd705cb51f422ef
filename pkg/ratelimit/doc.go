// Package ratelimit implements fixed-window request limiting with pluggable
// counter storage.
//
// RedisStore shares counters across replicas; MemoryStore suits a single
// process and tests. Middleware enforces a Limiter on HTTP handlers and
// fails open when the store is unavailable.
package ratelimit
