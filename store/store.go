// Package store implements the cascade.Store capability set on top of
// any byte provider (Ristretto, BigCache, Redis) plus a pluggable
// serialization codec.
//
// Entities are stored as framed codec payloads under
// "entity:<ns>:<typename>:<id>". Cached query results live under
// "query:<ns>:<name>:<args-hash>" with a persisted stale flag; a query
// index tracks which queries exist so invalidations can be matched
// against them. Corrupt frames are deleted on read and reported as
// misses (self-heal).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/codec"
	"github.com/unkn0wn-root/cascade/internal/util"
	"github.com/unkn0wn-root/cascade/internal/wire"
	"github.com/unkn0wn-root/cascade/provider"
	"github.com/unkn0wn-root/cascade/store/queryindex"
)

const (
	defaultEntityTTL      = 10 * time.Minute
	defaultQueryTTL       = 10 * time.Minute
	defaultRefetchTimeout = 30 * time.Second
	defaultMaxRefetch     = 4
)

// ErrRefetchCapacity marks a refetch dropped because too many were
// already in flight. Reported through hooks only.
var ErrRefetchCapacity = errors.New("store: refetch dropped, at capacity")

// Refetcher re-executes a cached query against its source and returns
// the fresh result. Called from refetch goroutines; must be safe for
// concurrent use.
type Refetcher func(ctx context.Context, name string, args map[string]any) (any, error)

// Options tune the store. Namespace, Provider and Entities are required.
type Options struct {
	// Required
	Namespace string // logical namespace to avoid collisions, e.g. "app:prod"
	Provider  provider.Provider
	Entities  codec.Codec[cascade.Entity]

	Queries   codec.Codec[any]  // query result payloads; nil => codec.JSON[any]
	Index     queryindex.Index  // nil => queryindex.NewLocal()
	Refetcher Refetcher         // nil => REFETCH degrades to mark-stale
	Logger    cascade.Logger    // nil => NopLogger
	Hooks     cascade.Hooks     // nil => NopHooks

	EntityTTL            time.Duration // 0 => 10m
	QueryTTL             time.Duration // 0 => 10m
	RefetchTimeout       time.Duration // per refetch; 0 => 30s
	MaxConcurrentRefetch int64         // 0 => 4
}

// Store is a cascade.Store over a byte provider.
type Store struct {
	ns       string
	provider provider.Provider
	entities codec.Codec[cascade.Entity]
	queries  codec.Codec[any]
	index    queryindex.Index
	refetch  Refetcher
	log      cascade.Logger
	hooks    cascade.Hooks

	entityTTL      time.Duration
	queryTTL       time.Duration
	refetchTimeout time.Duration

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

var _ cascade.Store = (*Store)(nil)

func New(opts Options) (*Store, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("store: namespace is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("store: provider is required")
	}
	if opts.Entities == nil {
		return nil, fmt.Errorf("store: entity codec is required")
	}

	s := &Store{
		ns:       opts.Namespace,
		provider: opts.Provider,
		entities: opts.Entities,
		refetch:  opts.Refetcher,
	}
	if opts.Queries != nil {
		s.queries = opts.Queries
	} else {
		s.queries = codec.JSON[any]{}
	}
	if opts.Index != nil {
		s.index = opts.Index
	} else {
		s.index = queryindex.NewLocal()
	}
	if opts.Logger != nil {
		s.log = opts.Logger
	} else {
		s.log = cascade.NopLogger{}
	}
	if opts.Hooks != nil {
		s.hooks = opts.Hooks
	} else {
		s.hooks = cascade.NopHooks{}
	}

	s.entityTTL = opts.EntityTTL
	if s.entityTTL == 0 {
		s.entityTTL = defaultEntityTTL
	}
	s.queryTTL = opts.QueryTTL
	if s.queryTTL == 0 {
		s.queryTTL = defaultQueryTTL
	}
	s.refetchTimeout = opts.RefetchTimeout
	if s.refetchTimeout == 0 {
		s.refetchTimeout = defaultRefetchTimeout
	}
	max := opts.MaxConcurrentRefetch
	if max <= 0 {
		max = defaultMaxRefetch
	}
	s.sem = semaphore.NewWeighted(max)

	return s, nil
}

// Close waits for in-flight refetches, then releases the index and the
// provider.
func (s *Store) Close(ctx context.Context) error {
	s.wg.Wait()
	_ = s.index.Close(ctx) // best effort
	return s.provider.Close(ctx)
}

// ==============================
// Entities
// ==============================

func (s *Store) WriteEntity(ctx context.Context, typename, id string, data cascade.Entity) error {
	payload, err := s.entities.Encode(data)
	if err != nil {
		return err
	}
	frame := wire.EncodeEntity(payload)
	k := s.entityKey(typename, id)
	ok, err := s.provider.Set(ctx, k, frame, int64(len(frame)), s.entityTTL)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("entity write rejected by provider (pressure)", cascade.Fields{"key": k})
	}
	return nil
}

func (s *Store) ReadEntity(ctx context.Context, typename, id string) (cascade.Entity, bool, error) {
	k := s.entityKey(typename, id)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	payload, err := wire.DecodeEntity(raw)
	if err != nil {
		_ = s.provider.Del(ctx, k) // self-heal corrupt
		return nil, false, nil
	}
	v, err := s.entities.Decode(payload)
	if err != nil {
		_ = s.provider.Del(ctx, k) // self-heal
		return nil, false, nil
	}
	return v, true, nil
}

func (s *Store) EvictEntity(ctx context.Context, typename, id string) error {
	return s.provider.Del(ctx, s.entityKey(typename, id))
}

// ==============================
// Cached queries
// ==============================

// PutQuery caches a query result as fresh and registers it in the index.
func (s *Store) PutQuery(ctx context.Context, name string, args map[string]any, result any) error {
	payload, err := s.queries.Encode(result)
	if err != nil {
		return err
	}
	argsJSON, err := canonicalArgs(args)
	if err != nil {
		return err
	}
	frame, err := wire.EncodeQuery(wire.QueryFrame{Name: name, Args: argsJSON, Payload: payload})
	if err != nil {
		return err
	}
	k := s.queryKey(name, argsJSON)
	ok, err := s.provider.Set(ctx, k, frame, int64(len(frame)), s.queryTTL)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("query write rejected by provider (pressure)", cascade.Fields{"key": k})
		return nil
	}
	return s.index.Put(ctx, k, queryindex.Meta{Name: name, Args: args})
}

// GetQuery returns the cached result for (name, args) and whether it has
// been marked stale by an invalidation.
func (s *Store) GetQuery(ctx context.Context, name string, args map[string]any) (result any, ok, stale bool, err error) {
	argsJSON, err := canonicalArgs(args)
	if err != nil {
		return nil, false, false, err
	}
	k := s.queryKey(name, argsJSON)
	raw, found, err := s.provider.Get(ctx, k)
	if err != nil || !found {
		return nil, false, false, err
	}
	f, err := wire.DecodeQuery(raw)
	if err != nil {
		s.dropQuery(ctx, k) // self-heal corrupt
		return nil, false, false, nil
	}
	v, err := s.queries.Decode(f.Payload)
	if err != nil {
		s.dropQuery(ctx, k) // self-heal
		return nil, false, false, nil
	}
	return v, true, f.Stale, nil
}

func (s *Store) InvalidateQuery(ctx context.Context, inv cascade.QueryInvalidation) error {
	matched, err := s.matches(ctx, inv)
	if err != nil {
		return err
	}
	var errs []error
	for k := range matched {
		if err := s.markStale(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) RemoveQuery(ctx context.Context, inv cascade.QueryInvalidation) error {
	matched, err := s.matches(ctx, inv)
	if err != nil {
		return err
	}
	var errs []error
	for k := range matched {
		if err := s.provider.Del(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.index.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RefetchQuery triggers fire-and-forget refetches of every matched
// query. Never blocks on the refetch and never surfaces its failures;
// those go to hooks and logs only. Without a Refetcher the matches are
// marked stale instead.
func (s *Store) RefetchQuery(ctx context.Context, inv cascade.QueryInvalidation) error {
	matched, err := s.matches(ctx, inv)
	if err != nil {
		return err
	}
	for k, m := range matched {
		if s.refetch == nil {
			if err := s.markStale(ctx, k); err != nil {
				s.log.Warn("no refetcher; mark-stale fallback failed", cascade.Fields{"query": m.Name, "err": err})
			} else {
				s.log.Debug("no refetcher configured; marked stale", cascade.Fields{"query": m.Name})
			}
			continue
		}
		if !s.sem.TryAcquire(1) {
			s.hooks.RefetchFailed(m.Name, ErrRefetchCapacity)
			s.log.Warn("refetch dropped (at capacity)", cascade.Fields{"query": m.Name})
			continue
		}
		s.wg.Add(1)
		go s.doRefetch(m.Name, m.Args)
	}
	return nil
}

func (s *Store) doRefetch(name string, args map[string]any) {
	defer s.wg.Done()
	defer s.sem.Release(1)

	// Detached from the caller: the mutation that triggered this is long
	// gone by the time the refetch settles.
	ctx, cancel := context.WithTimeout(context.Background(), s.refetchTimeout)
	defer cancel()

	result, err := s.refetch(ctx, name, args)
	if err != nil {
		s.hooks.RefetchFailed(name, err)
		s.log.Warn("query refetch failed", cascade.Fields{"query": name, "err": err})
		return
	}
	if err := s.PutQuery(ctx, name, args, result); err != nil {
		s.hooks.RefetchFailed(name, err)
		s.log.Warn("query refetch store failed", cascade.Fields{"query": name, "err": err})
		return
	}
	s.log.Debug("query refetched", cascade.Fields{"query": name})
}

// matches resolves inv against the query index.
func (s *Store) matches(ctx context.Context, inv cascade.QueryInvalidation) (map[string]queryindex.Meta, error) {
	entries, err := s.index.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]queryindex.Meta)
	for k, m := range entries {
		if cascade.MatchesQuery(inv, m.Name, m.Args) {
			out[k] = m
		}
	}
	return out, nil
}

// markStale flips the stale flag on a cached query frame in place.
// Already-stale frames are left alone, keeping invalidation idempotent.
func (s *Store) markStale(ctx context.Context, k string) error {
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		return err
	}
	if !ok {
		// entry expired out from under its registration
		return s.index.Remove(ctx, k)
	}
	f, err := wire.DecodeQuery(raw)
	if err != nil {
		s.dropQuery(ctx, k)
		return nil
	}
	if f.Stale {
		return nil
	}
	f.Stale = true
	frame, err := wire.EncodeQuery(f)
	if err != nil {
		return err
	}
	_, err = s.provider.Set(ctx, k, frame, int64(len(frame)), s.queryTTL)
	return err
}

func (s *Store) dropQuery(ctx context.Context, k string) {
	_ = s.provider.Del(ctx, k)
	_ = s.index.Remove(ctx, k)
}

func (s *Store) entityKey(typename, id string) string {
	return util.EntityKey("entity:"+s.ns, typename, id)
}

func (s *Store) queryKey(name string, argsJSON []byte) string {
	return util.QueryKey("query:"+s.ns, name, argsJSON)
}

// canonicalArgs serializes arguments deterministically: encoding/json
// sorts map keys, so equal argument maps always hash to the same storage
// key.
func canonicalArgs(args map[string]any) ([]byte, error) {
	if len(args) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(args)
}
