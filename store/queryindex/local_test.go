package queryindex

import (
	"context"
	"reflect"
	"testing"
)

func TestLocalPutEntriesRemove(t *testing.T) {
	idx := NewLocal()
	ctx := context.Background()

	if err := idx.Put(ctx, "k1", Meta{Name: "listUsers"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Put(ctx, "k2", Meta{Name: "getUser", Args: map[string]any{"id": "1"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Re-putting a key refreshes its meta.
	if err := idx.Put(ctx, "k1", Meta{Name: "listUsers", Args: map[string]any{"limit": 10}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := idx.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	want := map[string]Meta{
		"k1": {Name: "listUsers", Args: map[string]any{"limit": 10}},
		"k2": {Name: "getUser", Args: map[string]any{"id": "1"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Entries = %v, want %v", got, want)
	}

	// The snapshot is a copy; mutating it must not touch the index.
	delete(got, "k1")
	again, _ := idx.Entries(ctx)
	if _, ok := again["k1"]; !ok {
		t.Fatalf("Entries handed out internal state")
	}

	if err := idx.Remove(ctx, "k1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := idx.Remove(ctx, "missing"); err != nil {
		t.Fatalf("Remove missing key: %v", err)
	}
	left, _ := idx.Entries(ctx)
	if len(left) != 1 {
		t.Fatalf("after remove: %v", left)
	}
	if err := idx.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
