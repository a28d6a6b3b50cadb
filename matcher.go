package cascade

import (
	"context"
	"path"
	"strings"
)

// MatchesQuery reports whether inv targets a cached query with the given
// name and arguments. Pure; store implementations run it against their
// candidate queries.
//
//   - EXACT: same query name and equal arguments.
//   - PREFIX: candidate name starts with the invalidation's query name.
//   - PATTERN: candidate name glob-matches the invalidation's pattern.
//   - ALL: every cached query, unconditionally.
func MatchesQuery(inv QueryInvalidation, name string, args map[string]any) bool {
	switch inv.Scope {
	case ScopeExact:
		return inv.QueryName == name && argsEqual(inv.Arguments, args)
	case ScopePrefix:
		return strings.HasPrefix(name, inv.QueryName)
	case ScopePattern:
		ok, err := path.Match(inv.QueryPattern, name)
		return err == nil && ok
	case ScopeAll:
		return true
	default:
		return false
	}
}

// Dispatch routes inv to the store action its strategy selects. The
// matcher never touches cache state itself; execution belongs to the
// store.
func Dispatch(ctx context.Context, s Store, inv QueryInvalidation) error {
	switch inv.Strategy {
	case StrategyInvalidate:
		return s.InvalidateQuery(ctx, inv)
	case StrategyRefetch:
		return s.RefetchQuery(ctx, inv)
	case StrategyRemove:
		return s.RemoveQuery(ctx, inv)
	default:
		return ErrUnknownStrategy
	}
}

// argsEqual compares argument maps; nil and empty are equivalent.
func argsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !equalValues(av, bv) {
			return false
		}
	}
	return true
}
