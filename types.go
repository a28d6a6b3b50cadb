package cascade

import "time"

// Entity is the schemaless field map carried for a single cached entity.
// Field values are whatever the wire decoder produced (JSON: string,
// float64, bool, nil, []any, map[string]any).
type Entity map[string]any

// Clone returns a shallow copy. Nested values are shared.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// EntityKey identifies an entity in the cache. Identity is always the
// (typename, id) pair.
type EntityKey struct {
	Typename string
	ID       string
}

func (k EntityKey) String() string { return k.Typename + ":" + k.ID }

// EntityOp is the operation recorded for an updated entity.
// Spellings are part of the wire contract.
type EntityOp string

const (
	OpCreated EntityOp = "CREATED"
	OpUpdated EntityOp = "UPDATED"
	OpDeleted EntityOp = "DELETED"
)

// InvalidationStrategy selects the cache action for matched queries.
type InvalidationStrategy string

const (
	StrategyInvalidate InvalidationStrategy = "INVALIDATE" // mark stale, no network
	StrategyRefetch    InvalidationStrategy = "REFETCH"    // async refetch, fire-and-forget
	StrategyRemove     InvalidationStrategy = "REMOVE"     // delete the cached query
)

// InvalidationScope is the matching rule determining which cached queries
// an invalidation targets.
type InvalidationScope string

const (
	ScopeExact   InvalidationScope = "EXACT"
	ScopePrefix  InvalidationScope = "PREFIX"
	ScopePattern InvalidationScope = "PATTERN"
	ScopeAll     InvalidationScope = "ALL"
)

// UpdatedEntity is one write within a cascade. Duplicate (typename, id)
// entries are legal; later array entries override earlier ones.
type UpdatedEntity struct {
	Typename  string   `json:"typename"`
	ID        string   `json:"id"`
	Operation EntityOp `json:"operation"`
	Entity    Entity   `json:"entity"`
}

func (u UpdatedEntity) Key() EntityKey { return EntityKey{Typename: u.Typename, ID: u.ID} }

// DeletedEntity is one eviction within a cascade. No payload - the data
// is gone.
type DeletedEntity struct {
	Typename  string    `json:"typename"`
	ID        string    `json:"id"`
	DeletedAt time.Time `json:"deletedAt"`
}

func (d DeletedEntity) Key() EntityKey { return EntityKey{Typename: d.Typename, ID: d.ID} }

// QueryInvalidation targets cached queries by scope and carries the
// strategy to apply to every match.
type QueryInvalidation struct {
	QueryName    string               `json:"queryName,omitempty"`
	QueryPattern string               `json:"queryPattern,omitempty"`
	Arguments    map[string]any       `json:"arguments,omitempty"`
	Strategy     InvalidationStrategy `json:"strategy"`
	Scope        InvalidationScope    `json:"scope"`
}

// Target returns the name or pattern the invalidation was written against,
// for logs and hooks.
func (q QueryInvalidation) Target() string {
	if q.Scope == ScopePattern {
		return q.QueryPattern
	}
	if q.Scope == ScopeAll {
		return "*"
	}
	return q.QueryName
}

// CascadeMetadata is informational only; the engine never branches on it.
type CascadeMetadata struct {
	Timestamp     time.Time `json:"timestamp"`
	TransactionID string    `json:"transactionId,omitempty"`
	Depth         int       `json:"depth"`
	AffectedCount int       `json:"affectedCount"`
}

// Cascade describes everything one mutation changed: entity writes, entity
// deletions, and query invalidations. A cascade is immutable once handed
// to the engine and is consumed exactly once per Apply.
type Cascade struct {
	Updated       []UpdatedEntity     `json:"updated"`
	Deleted       []DeletedEntity     `json:"deleted"`
	Invalidations []QueryInvalidation `json:"invalidations"`
	Metadata      CascadeMetadata     `json:"metadata"`
}

// Keys returns every identity the cascade touches (updated then deleted),
// deduplicated, first occurrence order preserved.
func (c *Cascade) Keys() []EntityKey {
	if c == nil {
		return nil
	}
	seen := make(map[EntityKey]struct{}, len(c.Updated)+len(c.Deleted))
	out := make([]EntityKey, 0, len(c.Updated)+len(c.Deleted))
	add := func(k EntityKey) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, u := range c.Updated {
		add(u.Key())
	}
	for _, d := range c.Deleted {
		add(d.Key())
	}
	return out
}

// Primary returns the cascade's primary entity: the first updated entry.
// ok is false when the cascade has no updates.
func (c *Cascade) Primary() (UpdatedEntity, bool) {
	if c == nil || len(c.Updated) == 0 {
		return UpdatedEntity{}, false
	}
	return c.Updated[0], true
}

// updatedFor returns the last updated entry for key, honoring the
// later-entries-win rule.
func (c *Cascade) updatedFor(key EntityKey) (UpdatedEntity, bool) {
	for i := len(c.Updated) - 1; i >= 0; i-- {
		if c.Updated[i].Key() == key {
			return c.Updated[i], true
		}
	}
	return UpdatedEntity{}, false
}
