package cascade

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// The enum spellings and field names below are shared with non-Go
// producers; changing any of them is a wire break.
func TestCascadeWireShape(t *testing.T) {
	raw := `{
		"updated": [
			{"typename": "User", "id": "1", "operation": "UPDATED",
			 "entity": {"id": "1", "name": "ada", "version": 2}}
		],
		"deleted": [
			{"typename": "Post", "id": "9", "deletedAt": "2026-08-23T12:00:00Z"}
		],
		"invalidations": [
			{"queryName": "listUsers", "strategy": "INVALIDATE", "scope": "PREFIX"},
			{"queryPattern": "get*", "strategy": "REFETCH", "scope": "PATTERN"},
			{"strategy": "REMOVE", "scope": "ALL"}
		],
		"metadata": {"timestamp": "2026-08-23T12:00:00Z", "transactionId": "tx-1",
			"depth": 1, "affectedCount": 2}
	}`

	var c Cascade
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(c.Updated) != 1 || c.Updated[0].Operation != OpUpdated {
		t.Fatalf("updated = %+v", c.Updated)
	}
	if c.Updated[0].Entity["name"] != "ada" {
		t.Fatalf("entity payload = %v", c.Updated[0].Entity)
	}
	if len(c.Deleted) != 1 || !c.Deleted[0].DeletedAt.Equal(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("deleted = %+v", c.Deleted)
	}
	if len(c.Invalidations) != 3 {
		t.Fatalf("invalidations = %+v", c.Invalidations)
	}
	if c.Invalidations[0].Strategy != StrategyInvalidate || c.Invalidations[0].Scope != ScopePrefix {
		t.Fatalf("invalidation[0] = %+v", c.Invalidations[0])
	}
	if c.Invalidations[1].Strategy != StrategyRefetch || c.Invalidations[1].Scope != ScopePattern {
		t.Fatalf("invalidation[1] = %+v", c.Invalidations[1])
	}
	if c.Invalidations[2].Strategy != StrategyRemove || c.Invalidations[2].Scope != ScopeAll {
		t.Fatalf("invalidation[2] = %+v", c.Invalidations[2])
	}
	if c.Metadata.TransactionID != "tx-1" || c.Metadata.AffectedCount != 2 {
		t.Fatalf("metadata = %+v", c.Metadata)
	}

	out, err := json.Marshal(c.Invalidations[0])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"queryName":"listUsers"`, `"strategy":"INVALIDATE"`, `"scope":"PREFIX"`} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("marshaled invalidation %s missing %s", out, want)
		}
	}
}
