// Package asynchook decouples hook sinks from the engine's hot paths:
// events are queued and delivered by worker goroutines, and dropped when
// the queue is full rather than blocking a mutation.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	eng, _ := cascade.New(cascade.Options{Store: st, Hooks: hooks})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/cascade"
)

type Hooks struct {
	inner cascade.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ cascade.Hooks = (*Hooks)(nil)

func New(inner cascade.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) EntityWriteFailed(tn, id string, err error) {
	h.try(func() { h.inner.EntityWriteFailed(tn, id, err) })
}
func (h *Hooks) EntityEvictFailed(tn, id string, err error) {
	h.try(func() { h.inner.EntityEvictFailed(tn, id, err) })
}
func (h *Hooks) InvalidationFailed(target string, err error) {
	h.try(func() { h.inner.InvalidationFailed(target, err) })
}
func (h *Hooks) RefetchFailed(name string, err error) {
	h.try(func() { h.inner.RefetchFailed(name, err) })
}
func (h *Hooks) ConflictDetected(tn, id string, kind cascade.ConflictKind) {
	h.try(func() { h.inner.ConflictDetected(tn, id, kind) })
}
func (h *Hooks) ConflictResolved(tn, id string, s cascade.ResolveStrategy) {
	h.try(func() { h.inner.ConflictResolved(tn, id, s) })
}
func (h *Hooks) RolledBack(id string, keys int, reason string) {
	h.try(func() { h.inner.RolledBack(id, keys, reason) })
}
func (h *Hooks) OptimisticTimeout(id string, age time.Duration) {
	h.try(func() { h.inner.OptimisticTimeout(id, age) })
}
