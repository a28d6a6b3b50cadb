package cascade

import (
	"context"
	"time"
)

// Store is the capability set the engine needs from a concrete cache.
// One implementation per downstream cache technology, supplied at
// construction time; the engine never inspects the concrete type.
//
// Entity operations must be idempotent: writing the same data or evicting
// the same key twice leaves the cache in the same state as doing it once.
// The engine relies on that for cascade idempotence.
type Store interface {
	// WriteEntity stores data under (typename, id), replacing any
	// previous value.
	WriteEntity(ctx context.Context, typename, id string, data Entity) error

	// ReadEntity returns (data, true, nil) on hit and (nil, false, nil)
	// when no entry exists.
	ReadEntity(ctx context.Context, typename, id string) (Entity, bool, error)

	// EvictEntity removes the entry for (typename, id). Evicting a
	// missing entry is not an error.
	EvictEntity(ctx context.Context, typename, id string) error

	// InvalidateQuery marks every cached query matched by inv as stale
	// without touching the network.
	InvalidateQuery(ctx context.Context, inv QueryInvalidation) error

	// RefetchQuery triggers an asynchronous refetch of every matched
	// query. It must not block on the refetch and must not surface
	// refetch failures.
	RefetchQuery(ctx context.Context, inv QueryInvalidation) error

	// RemoveQuery deletes every matched cached query entirely.
	RemoveQuery(ctx context.Context, inv QueryInvalidation) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Executor runs the real network mutation and returns the
// server-confirmed cascade. Retry/backoff for transient failures is the
// executor's business; the engine never retries.
type Executor func(ctx context.Context, mutation string, variables map[string]any) (*Cascade, error)

// Engine applies cascades to a Store and coordinates optimistic
// mutations against it.
type Engine interface {
	// Apply applies one cascade: updated entities in array order, then
	// deletions, then invalidations. A single item's failure never stops
	// the rest; failures come back aggregated in an *ApplyError.
	Apply(ctx context.Context, c *Cascade) error

	// MutateOptimistic applies predicted immediately, runs the executor,
	// and settles: on success the confirmed cascade is reconciled against
	// the prediction and applied; on failure the captured pre-images are
	// restored and the executor's error is returned unchanged.
	//
	// With the Manual strategy a detected conflict returns
	// *ConflictResolutionError and leaves the mutation pending until
	// ResolveManual or the timeout sweep settles it.
	MutateOptimistic(ctx context.Context, mutation string, variables map[string]any, predicted *Cascade) (*Cascade, error)

	// ResolveManual settles a mutation left pending by the Manual
	// strategy, applying resolved as the primary entity's final value.
	ResolveManual(ctx context.Context, mutationID string, resolved Entity) error

	// Pending reports whether mutationID is still awaiting settlement.
	Pending(mutationID string) bool

	// PendingCount returns the number of unsettled optimistic mutations.
	PendingCount() int

	// Close stops the timeout sweep and closes the store.
	Close(ctx context.Context) error
}

// Options tune the engine. Only Store is required; Executor may be nil
// when MutateOptimistic is never used.
type Options struct {
	// Required
	Store Store

	Executor Executor // required for MutateOptimistic

	Logger   Logger          // nil => NopLogger
	Hooks    Hooks           // nil => NopHooks
	Strategy ResolveStrategy // conflict resolution; zero value => ServerWins

	// OptimisticTimeout bounds how long a mutation may stay pending
	// before it is forcibly rolled back. 0 => 30s.
	OptimisticTimeout time.Duration

	// SweepInterval is how often pending records are checked against the
	// timeout budget. 0 => 5s.
	SweepInterval time.Duration
}

func New(opts Options) (Engine, error) {
	return newEngine(opts)
}
