package cascade

import "context"

// applier applies one cascade to the store. Order is fixed and part of
// the contract: updated entities in array order, then deletions, then
// invalidations. An entity present in both updated and deleted ends up
// evicted because deletions run after updates.
type applier struct {
	store Store
	log   Logger
	hooks Hooks
}

// apply is side-effecting only. A failure on one item is caught, logged,
// and does not prevent processing of the remaining items; failures come
// back aggregated in an *ApplyError. Idempotence follows from the store's
// write/evict being idempotent; apply adds no state of its own.
func (a *applier) apply(ctx context.Context, c *Cascade) error {
	if c == nil {
		return nil
	}
	var failures []error

	// Later duplicates for the same (typename, id) overwrite earlier
	// ones simply by running in array order.
	for _, u := range c.Updated {
		if err := a.store.WriteEntity(ctx, u.Typename, u.ID, u.Entity); err != nil {
			a.hooks.EntityWriteFailed(u.Typename, u.ID, err)
			a.log.Warn("entity write failed", Fields{"key": u.Key().String(), "err": err})
			failures = append(failures, &CacheOpError{Op: "write", Typename: u.Typename, ID: u.ID, Err: err})
		}
	}

	for _, d := range c.Deleted {
		if err := a.store.EvictEntity(ctx, d.Typename, d.ID); err != nil {
			a.hooks.EntityEvictFailed(d.Typename, d.ID, err)
			a.log.Warn("entity evict failed", Fields{"key": d.Key().String(), "err": err})
			failures = append(failures, &CacheOpError{Op: "evict", Typename: d.Typename, ID: d.ID, Err: err})
		}
	}

	for _, inv := range c.Invalidations {
		if err := Dispatch(ctx, a.store, inv); err != nil {
			a.hooks.InvalidationFailed(inv.Target(), err)
			a.log.Warn("invalidation dispatch failed", Fields{
				"target":   inv.Target(),
				"strategy": inv.Strategy,
				"err":      err,
			})
			failures = append(failures, &CacheOpError{Op: opForStrategy(inv.Strategy), Target: inv.Target(), Err: err})
		}
	}

	if len(failures) > 0 {
		return &ApplyError{Failures: failures}
	}
	return nil
}

func opForStrategy(s InvalidationStrategy) string {
	switch s {
	case StrategyInvalidate:
		return "invalidate"
	case StrategyRefetch:
		return "refetch"
	case StrategyRemove:
		return "remove"
	default:
		return "dispatch"
	}
}
