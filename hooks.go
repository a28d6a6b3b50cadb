package cascade

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The engine calls them on hot paths.
type Hooks interface {
	// A single entity write failed during Apply; the rest of the cascade
	// still ran.
	EntityWriteFailed(typename, id string, err error)

	// A single entity eviction failed during Apply.
	EntityEvictFailed(typename, id string, err error)

	// Dispatching one invalidation to the store failed.
	// target is QueryInvalidation.Target().
	InvalidationFailed(target string, err error)

	// An asynchronous refetch failed or was dropped at capacity. Never
	// surfaced as a mutation failure; this hook is the only signal.
	RefetchFailed(queryName string, err error)

	// Divergence detected between the predicted and confirmed primary
	// entity on confirmation.
	ConflictDetected(typename, id string, kind ConflictKind)

	// A detected conflict was reconciled with the given strategy.
	ConflictResolved(typename, id string, strategy ResolveStrategy)

	// An optimistic mutation was rolled back.
	// reason ∈ {"mutation_failed", "timeout"}
	RolledBack(mutationID string, keys int, reason string)

	// A pending record exceeded the optimistic budget and was forcibly
	// rolled back.
	OptimisticTimeout(mutationID string, age time.Duration)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntityWriteFailed(string, string, error)          {}
func (NopHooks) EntityEvictFailed(string, string, error)          {}
func (NopHooks) InvalidationFailed(string, error)                 {}
func (NopHooks) RefetchFailed(string, error)                      {}
func (NopHooks) ConflictDetected(string, string, ConflictKind)    {}
func (NopHooks) ConflictResolved(string, string, ResolveStrategy) {}
func (NopHooks) RolledBack(string, int, string)                   {}
func (NopHooks) OptimisticTimeout(string, time.Duration)          {}
