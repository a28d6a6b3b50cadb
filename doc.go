// Package cascade keeps a client-side cache consistent with the server's
// view of mutated data by applying cascades - structured descriptions of
// every entity and cached query a mutation changed - to an abstract cache,
// optionally before the mutation's round-trip completes.
//
// Components:
//   - Store: the minimal capability set any concrete cache must expose
//     (write/read/evict entities, invalidate/refetch/remove queries).
//   - Applier: applies one cascade in fixed order with per-item failure
//     isolation; applying the same cascade twice is a no-op.
//   - Matcher: pure invalidation-scope matching (EXACT/PREFIX/PATTERN/ALL)
//     and strategy dispatch (INVALIDATE/REFETCH/REMOVE).
//   - Conflict detector/resolver: classifies divergence between a locally
//     predicted entity and the server-confirmed one, and reconciles it.
//   - Optimistic coordinator: predict -> apply immediately -> await
//     confirmation -> confirm or roll back from captured pre-images.
//
// Optimistic pattern:
//
//	eng, _ := cascade.New(cascade.Options{Store: st, Executor: exec})
//	confirmed, err := eng.MutateOptimistic(ctx, "updateUser", vars, predicted)
//	// cache already reflected `predicted`; on err it has been restored
package cascade
