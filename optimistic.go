package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Per-mutation state machine: Applied (set when the predicted cascade
// lands) -> Confirmed or RolledBack. Both end states are terminal and
// remove the record from the registry.
type recordState int

const (
	stateApplied recordState = iota
	stateConfirmed
	stateRolledBack
)

// preImage is the cache's exact entity state captured immediately before
// the optimistic write. absent records "no entry existed" explicitly, so
// rollback can evict rather than write an empty value.
type preImage struct {
	data   Entity
	absent bool
}

// record is an OptimisticRecord: plain, inspectable pre-image snapshots
// rather than captured rollback closures. Owned exclusively by the
// engine; never handed out.
type record struct {
	mutationID string
	preImages  map[EntityKey]preImage
	order      []EntityKey // capture order; rollback restores in it
	capturedAt time.Time
	state      recordState

	// Manual strategy parking: the confirmed cascade awaiting an
	// out-of-band resolution, and the identity the conflict was on.
	awaiting *Cascade
	conflict EntityKey
}

func (e *engine) MutateOptimistic(ctx context.Context, mutation string, variables map[string]any, predicted *Cascade) (*Cascade, error) {
	if e.exec == nil {
		return nil, ErrNoExecutor
	}
	if predicted == nil {
		predicted = &Cascade{}
	}

	// Capture pre-images before any optimistic write. A failed read here
	// aborts with no optimistic effect: rolling back from an untrusted
	// snapshot would corrupt the cache.
	//
	// Known race: when two in-flight mutations touch the same identity,
	// the second capture observes the first's optimistic value, so a
	// later rollback of the first can clobber the second's pending
	// write. Deliberate; a real fix needs per-entity versioning of
	// pending writes.
	rec, err := e.capture(ctx, predicted)
	if err != nil {
		return nil, err
	}
	e.register(rec)

	if err := e.ap.apply(ctx, predicted); err != nil {
		// Per-item failures are absorbed; the optimistic effect is
		// best-effort by contract.
		e.log.Warn("optimistic apply had failures", Fields{"mutation_id": rec.mutationID, "err": err})
	}

	confirmed, execErr := e.exec(ctx, mutation, variables)
	if execErr != nil {
		if settled, ok := e.settle(rec.mutationID, stateRolledBack); ok {
			e.rollback(settled, "mutation_failed")
		}
		// Re-raise the executor's failure unchanged.
		return nil, execErr
	}

	final := confirmed
	if pred, ok := predicted.Primary(); ok && confirmed != nil {
		serverEnt, key, ok := confirmedCounterpart(confirmed, pred.Key())
		if ok {
			report := Detect(key.Typename, key.ID, pred.Entity, serverEnt)
			if report.HasConflict {
				e.hooks.ConflictDetected(key.Typename, key.ID, report.Kind)
				resolved, rerr := Resolve(report, e.strategy)
				if rerr != nil {
					var cre *ConflictResolutionError
					if errors.As(rerr, &cre) {
						cre.MutationID = rec.mutationID
						if !e.park(rec.mutationID, confirmed, key) {
							return nil, &TimeoutError{MutationID: rec.mutationID, Age: time.Since(rec.capturedAt)}
						}
						return nil, cre
					}
					// Strategy was validated at construction; treat
					// anything else as server-wins and move on.
					e.log.Error("conflict resolution failed; applying confirmed state", Fields{
						"mutation_id": rec.mutationID,
						"err":         rerr,
					})
				} else {
					e.hooks.ConflictResolved(key.Typename, key.ID, e.strategy)
					final = withResolvedPrimary(confirmed, key, resolved)
				}
			}
		}
	}

	if _, ok := e.settle(rec.mutationID, stateConfirmed); !ok {
		// The sweep rolled this record back while the mutation was in
		// flight; the confirmed cascade must not land on top of that.
		return nil, &TimeoutError{MutationID: rec.mutationID, Age: time.Since(rec.capturedAt)}
	}
	if err := e.ap.apply(ctx, final); err != nil {
		e.log.Warn("confirmed apply had failures", Fields{"mutation_id": rec.mutationID, "err": err})
	}
	return confirmed, nil
}

func (e *engine) ResolveManual(ctx context.Context, mutationID string, resolved Entity) error {
	e.mu.Lock()
	rec, ok := e.records[mutationID]
	if !ok || rec.awaiting == nil {
		e.mu.Unlock()
		return ErrNotPending
	}
	rec.state = stateConfirmed
	delete(e.records, mutationID)
	awaiting, key := rec.awaiting, rec.conflict
	e.mu.Unlock()

	final := withResolvedPrimary(awaiting, key, resolved)
	if err := e.ap.apply(ctx, final); err != nil {
		e.log.Warn("manual resolution apply had failures", Fields{"mutation_id": mutationID, "err": err})
	}
	e.hooks.ConflictResolved(key.Typename, key.ID, Manual)
	return nil
}

// capture reads the current cache value for every identity the predicted
// cascade touches, before any optimistic write.
func (e *engine) capture(ctx context.Context, predicted *Cascade) (*record, error) {
	keys := predicted.Keys()
	rec := &record{
		preImages:  make(map[EntityKey]preImage, len(keys)),
		order:      keys,
		capturedAt: time.Now(),
	}
	for _, k := range keys {
		data, ok, err := e.store.ReadEntity(ctx, k.Typename, k.ID)
		if err != nil {
			return nil, fmt.Errorf("cascade: pre-image read for %s: %w", k, err)
		}
		if !ok {
			rec.preImages[k] = preImage{absent: true}
			continue
		}
		rec.preImages[k] = preImage{data: data.Clone()}
	}
	return rec, nil
}

// register assigns a fresh mutation id, guaranteed not to collide with
// any currently pending id, and stores the record.
func (e *engine) register(rec *record) {
	e.mu.Lock()
	for {
		id := uuid.NewString()
		if _, taken := e.records[id]; !taken {
			rec.mutationID = id
			break
		}
	}
	e.records[rec.mutationID] = rec
	e.mu.Unlock()
}

// settle transitions a still-Applied record to a terminal state and
// removes it from the registry. ok=false when the record is gone or was
// already settled (e.g. by the timeout sweep).
func (e *engine) settle(mutationID string, to recordState) (*record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[mutationID]
	if !ok || rec.state != stateApplied {
		return nil, false
	}
	rec.state = to
	delete(e.records, mutationID)
	return rec, true
}

// park keeps a record pending with its confirmed cascade attached,
// awaiting ResolveManual.
func (e *engine) park(mutationID string, confirmed *Cascade, key EntityKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[mutationID]
	if !ok || rec.state != stateApplied {
		return false
	}
	rec.awaiting = confirmed
	rec.conflict = key
	return true
}

// rollback restores the exact pre-optimistic cache state: keys that were
// absent are evicted, everything else gets its captured value written
// back. Runs on a background context - the caller's context is often
// already canceled or expired by the time restoration must happen.
func (e *engine) rollback(rec *record, reason string) {
	ctx := context.Background()
	for _, k := range rec.order {
		pre := rec.preImages[k]
		if pre.absent {
			if err := e.store.EvictEntity(ctx, k.Typename, k.ID); err != nil {
				e.hooks.EntityEvictFailed(k.Typename, k.ID, err)
				e.log.Warn("rollback evict failed", Fields{"key": k.String(), "err": err})
			}
			continue
		}
		if err := e.store.WriteEntity(ctx, k.Typename, k.ID, pre.data); err != nil {
			e.hooks.EntityWriteFailed(k.Typename, k.ID, err)
			e.log.Warn("rollback write failed", Fields{"key": k.String(), "err": err})
		}
	}
	e.hooks.RolledBack(rec.mutationID, len(rec.order), reason)
	e.log.Debug("rolled back optimistic mutation", Fields{
		"mutation_id": rec.mutationID,
		"keys":        len(rec.order),
		"reason":      reason,
	})
}

// confirmedCounterpart pairs the predicted primary with the confirmed
// entry of the same identity, falling back to the confirmed cascade's
// own primary entry.
func confirmedCounterpart(confirmed *Cascade, predictedKey EntityKey) (Entity, EntityKey, bool) {
	if u, ok := confirmed.updatedFor(predictedKey); ok {
		return u.Entity, u.Key(), true
	}
	if u, ok := confirmed.Primary(); ok {
		return u.Entity, u.Key(), true
	}
	return nil, EntityKey{}, false
}

// withResolvedPrimary returns a copy of c whose effective entry for key
// (the last one, per later-entries-win) carries resolved instead of the
// server payload. c itself is never mutated.
func withResolvedPrimary(c *Cascade, key EntityKey, resolved Entity) *Cascade {
	out := &Cascade{
		Updated:       make([]UpdatedEntity, len(c.Updated)),
		Deleted:       c.Deleted,
		Invalidations: c.Invalidations,
		Metadata:      c.Metadata,
	}
	copy(out.Updated, c.Updated)
	for i := len(out.Updated) - 1; i >= 0; i-- {
		if out.Updated[i].Key() == key {
			out.Updated[i].Entity = resolved
			break
		}
	}
	return out
}
