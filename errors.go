package cascade

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoExecutor is returned by MutateOptimistic when Options.Executor
	// was not configured.
	ErrNoExecutor = errors.New("cascade: no executor configured")

	// ErrNotPending is returned by ResolveManual for an unknown or
	// already settled mutation id.
	ErrNotPending = errors.New("cascade: mutation is not pending")

	// ErrUnknownStrategy is returned when an invalidation carries a
	// strategy the dispatcher does not recognize.
	ErrUnknownStrategy = errors.New("cascade: unknown invalidation strategy")
)

// CacheOpError records a single failed store operation during Apply.
// It is absorbed per item: the remaining cascade items still run.
type CacheOpError struct {
	Op       string // "write", "evict", "invalidate", "refetch", "remove"
	Typename string // entity ops only
	ID       string // entity ops only
	Target   string // invalidation ops only
	Err      error
}

func (e *CacheOpError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("cache %s %q failed: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("cache %s %s:%s failed: %v", e.Op, e.Typename, e.ID, e.Err)
}

func (e *CacheOpError) Unwrap() error { return e.Err }

// ApplyError aggregates every per-item failure from one Apply call.
// Apply never aborts partway; all items ran before this is returned.
type ApplyError struct {
	Failures []error
}

func (e *ApplyError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("apply: 1 item failed: %v", e.Failures[0])
	}
	return fmt.Sprintf("apply: %d items failed; first: %v", len(e.Failures), e.Failures[0])
}

func (e *ApplyError) Unwrap() []error { return e.Failures }

// ConflictResolutionError is returned by MutateOptimistic when the Manual
// strategy is configured and a conflict was detected. The mutation stays
// pending; settle it with Engine.ResolveManual or let the timeout sweep
// roll it back.
type ConflictResolutionError struct {
	MutationID string
	Report     *ConflictReport
}

func (e *ConflictResolutionError) Error() string {
	key := EntityKey{Typename: e.Report.Typename, ID: e.Report.ID}
	if e.MutationID == "" {
		return fmt.Sprintf("manual resolution required (%s conflict on %s)", e.Report.Kind, key)
	}
	return fmt.Sprintf("mutation %s: manual resolution required (%s conflict on %s)",
		e.MutationID, e.Report.Kind, key)
}

// TimeoutError reports that a pending optimistic mutation exceeded its
// budget and was forcibly rolled back by the sweep.
type TimeoutError struct {
	MutationID string
	Age        time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mutation %s: optimistic record timed out after %s and was rolled back",
		e.MutationID, e.Age)
}
