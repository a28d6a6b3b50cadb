// Package provider defines the byte-store abstraction the generic store
// implementation is layered on.
//
// Implementations MUST be byte-for-byte transparent: Get must return
// exactly the same []byte that was previously passed to Set for a key. If
// a store performs internal transforms (e.g., compression), they MUST be
// fully reversed before returning.
//
// The keyspaces "entity:<ns>:" and "query:<ns>:" are owned by the store
// layer. External code MUST NOT write values under these prefixes.
// Foreign writes may be treated as corruption by strict wire-format
// validation and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for
// concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if
	// unsupported. Returns ok=false when the store rejected the write
	// under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
