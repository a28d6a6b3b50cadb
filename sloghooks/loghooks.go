package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/cascade"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ConflictEvery uint64
	RefetchEvery  uint64
	// Optional id redactor for mutation ids. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	conflictCtr atomic.Uint64
	refetchCtr  atomic.Uint64
}

var _ cascade.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(id string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(id)
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EntityWriteFailed(typename, id string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cascade.entity_write_failed",
		"typename", typename,
		"id", id,
		"err", err)
}

func (h *Hooks) EntityEvictFailed(typename, id string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cascade.entity_evict_failed",
		"typename", typename,
		"id", id,
		"err", err)
}

func (h *Hooks) InvalidationFailed(target string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cascade.invalidation_failed",
		"target", target,
		"err", err)
}

func (h *Hooks) RefetchFailed(queryName string, err error) {
	if h.l == nil || !sample(h.opts.RefetchEvery, &h.refetchCtr) {
		return
	}
	h.l.Info("cascade.refetch_failed",
		"query", queryName,
		"err", err)
}

func (h *Hooks) ConflictDetected(typename, id string, kind cascade.ConflictKind) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Info("cascade.conflict_detected",
		"typename", typename,
		"id", id,
		"kind", string(kind))
}

func (h *Hooks) ConflictResolved(typename, id string, strategy cascade.ResolveStrategy) {
	if h.l == nil {
		return
	}
	h.l.Debug("cascade.conflict_resolved",
		"typename", typename,
		"id", id,
		"strategy", string(strategy))
}

func (h *Hooks) RolledBack(mutationID string, keys int, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("cascade.rolled_back",
		"mutation", h.redact(mutationID),
		"keys", keys,
		"reason", reason)
}

func (h *Hooks) OptimisticTimeout(mutationID string, age time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("cascade.optimistic_timeout",
		"mutation", h.redact(mutationID),
		"age", age)
}
