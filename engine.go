package cascade

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	defaultOptimisticTimeout = 30 * time.Second
	defaultSweepInterval     = 5 * time.Second
)

type engine struct {
	store    Store
	exec     Executor
	log      Logger
	hooks    Hooks
	strategy ResolveStrategy
	timeout  time.Duration
	ap       *applier

	// pending optimistic records, keyed by mutation id. Owned by this
	// engine instance; never global.
	mu      sync.Mutex
	records map[string]*record

	ticker    *time.Ticker
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

func newEngine(opts Options) (*engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("cascade: store is required")
	}
	switch opts.Strategy {
	case "", ServerWins, ClientWins, Merge, Manual:
	default:
		return nil, fmt.Errorf("cascade: unknown resolve strategy %q", opts.Strategy)
	}

	e := &engine{
		store:   opts.Store,
		exec:    opts.Executor,
		records: make(map[string]*record),
	}
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.strategy = coalesce[ResolveStrategy](opts.Strategy, ServerWins)
	e.timeout = coalesce[time.Duration](opts.OptimisticTimeout, defaultOptimisticTimeout)
	sweep := coalesce[time.Duration](opts.SweepInterval, defaultSweepInterval)

	e.ap = &applier{store: e.store, log: e.log, hooks: e.hooks}

	e.ticker = time.NewTicker(sweep)
	e.stopCh = make(chan struct{})
	e.closeWg.Add(1)
	go e.sweepLoop()

	return e, nil
}

func (e *engine) Apply(ctx context.Context, c *Cascade) error {
	return e.ap.apply(ctx, c)
}

func (e *engine) Pending(mutationID string) bool {
	e.mu.Lock()
	_, ok := e.records[mutationID]
	e.mu.Unlock()
	return ok
}

func (e *engine) PendingCount() int {
	e.mu.Lock()
	n := len(e.records)
	e.mu.Unlock()
	return n
}

func (e *engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		close(e.stopCh)
		e.closeWg.Wait()
		e.ticker.Stop()
	})
	return e.store.Close(ctx)
}

func (e *engine) sweepLoop() {
	defer e.closeWg.Done()
	for {
		select {
		case <-e.ticker.C:
			e.sweepExpired()
		case <-e.stopCh:
			return
		}
	}
}

// sweepExpired forcibly rolls back records that outlived the optimistic
// budget. This bounds memory and staleness; it backs up, not replaces,
// the rollback on executor failure.
func (e *engine) sweepExpired() {
	now := time.Now()
	var expired []*record

	e.mu.Lock()
	for id, rec := range e.records {
		if now.Sub(rec.capturedAt) > e.timeout {
			rec.state = stateRolledBack
			delete(e.records, id)
			expired = append(expired, rec)
		}
	}
	e.mu.Unlock()

	for _, rec := range expired {
		age := now.Sub(rec.capturedAt)
		e.hooks.OptimisticTimeout(rec.mutationID, age)
		e.log.Warn("optimistic record exceeded budget; forcing rollback", Fields{
			"mutation_id": rec.mutationID,
			"age":         age,
		})
		e.rollback(rec, "timeout")
	}
}
