package cascade

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// ConflictKind classifies divergence between a locally predicted entity
// and the server-confirmed one.
type ConflictKind string

const (
	ConflictVersion   ConflictKind = "VERSION_MISMATCH"
	ConflictTimestamp ConflictKind = "TIMESTAMP_MISMATCH"
	ConflictField     ConflictKind = "FIELD_CONFLICT"
)

// ResolveStrategy picks how a detected conflict is reconciled.
type ResolveStrategy string

const (
	// ServerWins returns the server entity verbatim. Default.
	ServerWins ResolveStrategy = "SERVER_WINS"
	// ClientWins returns the local entity verbatim.
	ClientWins ResolveStrategy = "CLIENT_WINS"
	// Merge starts from the server entity and fills fields the server
	// left absent or null from non-null local values. Shallow only:
	// nested structures are replaced wholesale by whichever side wins.
	Merge ResolveStrategy = "MERGE"
	// Manual refuses to auto-resolve; the caller must settle out of band.
	Manual ResolveStrategy = "MANUAL"
)

// ConflictReport is the result of Detect.
type ConflictReport struct {
	HasConflict       bool
	Kind              ConflictKind
	Typename          string
	ID                string
	LocalEntity       Entity
	ServerEntity      Entity
	ConflictingFields []string // FIELD_CONFLICT only, sorted
}

const (
	versionField   = "version"
	updatedAtField = "updatedAt"
)

// identity and metadata fields are excluded from field-level comparison;
// version and updatedAt are already covered by the earlier checks.
var nonComparableFields = map[string]struct{}{
	"id":           {},
	"__typename":   {},
	versionField:   {},
	updatedAtField: {},
}

// Detect classifies divergence between local (predicted) and server
// (confirmed) in strict priority order; the first match wins:
//
//  1. VERSION_MISMATCH - both carry a numeric version and the values
//     differ. A local version of exactly zero means "no version
//     information" and skips this check entirely, even when the server's
//     differs. Inherited quirk; peers depend on it.
//  2. TIMESTAMP_MISMATCH - both carry updatedAt and the local one is
//     strictly later, i.e. the optimistic value raced ahead of what the
//     server last observed.
//  3. FIELD_CONFLICT - any non-identity, non-metadata field present on
//     both sides with differing values.
func Detect(typename, id string, local, server Entity) *ConflictReport {
	r := &ConflictReport{
		Typename:     typename,
		ID:           id,
		LocalEntity:  local,
		ServerEntity: server,
	}
	if local == nil || server == nil {
		return r
	}

	if lv, ok := numberField(local, versionField); ok && lv != 0 {
		if sv, ok := numberField(server, versionField); ok && lv != sv {
			r.HasConflict = true
			r.Kind = ConflictVersion
			return r
		}
	}

	if lt, ok := timeField(local, updatedAtField); ok {
		if st, ok := timeField(server, updatedAtField); ok && lt.After(st) {
			r.HasConflict = true
			r.Kind = ConflictTimestamp
			return r
		}
	}

	var fields []string
	for k, lv := range local {
		if _, skip := nonComparableFields[k]; skip {
			continue
		}
		sv, ok := server[k]
		if !ok {
			continue
		}
		if !equalValues(lv, sv) {
			fields = append(fields, k)
		}
	}
	if len(fields) > 0 {
		sort.Strings(fields)
		r.HasConflict = true
		r.Kind = ConflictField
		r.ConflictingFields = fields
	}
	return r
}

// Resolve reconciles a detected conflict per strategy. The returned
// entity is a fresh map; neither input is mutated.
func Resolve(report *ConflictReport, strategy ResolveStrategy) (Entity, error) {
	if strategy == "" {
		strategy = ServerWins
	}
	switch strategy {
	case ServerWins:
		return report.ServerEntity.Clone(), nil
	case ClientWins:
		return report.LocalEntity.Clone(), nil
	case Merge:
		out := report.ServerEntity.Clone()
		if out == nil {
			out = Entity{}
		}
		for k, lv := range report.LocalEntity {
			if lv == nil {
				continue
			}
			if sv, ok := out[k]; !ok || sv == nil {
				out[k] = lv
			}
		}
		return out, nil
	case Manual:
		return nil, &ConflictResolutionError{Report: report}
	default:
		return nil, fmt.Errorf("cascade: unknown resolve strategy %q", strategy)
	}
}

// numberField extracts a numeric field, tolerating the integer and float
// shapes different decoders produce.
func numberField(e Entity, key string) (float64, bool) {
	v, ok := e[key]
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// timeField extracts an update timestamp. Accepts time.Time, RFC3339
// strings, and numeric Unix milliseconds (the usual wire producers are
// JS-adjacent).
func timeField(e Entity, key string) (time.Time, bool) {
	v, ok := e[key]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
		return time.Time{}, false
	default:
		if ms, ok := asNumber(v); ok {
			return time.UnixMilli(int64(ms)), true
		}
		return time.Time{}, false
	}
}

// equalValues compares field values, treating numerically equal values of
// different Go types as equal.
func equalValues(a, b any) bool {
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			return an == bn
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
