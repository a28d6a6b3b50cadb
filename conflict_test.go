package cascade

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestDetectVersionMismatchTakesPriority(t *testing.T) {
	// Both a version divergence and a field divergence are present; the
	// report must classify as VERSION_MISMATCH only.
	local := Entity{"version": 3, "name": "local", "updatedAt": "2026-08-23T12:00:00Z"}
	server := Entity{"version": 5, "name": "server", "updatedAt": "2026-08-23T11:00:00Z"}

	r := Detect("User", "1", local, server)
	if !r.HasConflict || r.Kind != ConflictVersion {
		t.Fatalf("want VERSION_MISMATCH, got %+v", r)
	}
	if r.ConflictingFields != nil {
		t.Fatalf("version mismatch must not enumerate fields: %v", r.ConflictingFields)
	}
}

func TestDetectVersionZeroSkipsVersionCheck(t *testing.T) {
	// Local version zero means "no version information"; detection falls
	// through to the later checks even though the server version differs.
	local := Entity{"version": 0, "name": "same"}
	server := Entity{"version": 9, "name": "same"}

	r := Detect("User", "1", local, server)
	if r.HasConflict {
		t.Fatalf("version 0 must not trigger a version conflict: %+v", r)
	}

	local["name"] = "changed"
	r = Detect("User", "1", local, server)
	if !r.HasConflict || r.Kind != ConflictField {
		t.Fatalf("want fallthrough to FIELD_CONFLICT, got %+v", r)
	}
}

func TestDetectVersionAcrossNumericShapes(t *testing.T) {
	local := Entity{"version": int64(4)}
	server := Entity{"version": float64(4)}
	if r := Detect("User", "1", local, server); r.HasConflict {
		t.Fatalf("int64 4 vs float64 4 is not a mismatch: %+v", r)
	}
}

func TestDetectTimestampMismatch(t *testing.T) {
	later := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	t.Run("local later wins", func(t *testing.T) {
		local := Entity{"updatedAt": later, "name": "x"}
		server := Entity{"updatedAt": earlier, "name": "x"}
		r := Detect("User", "1", local, server)
		if !r.HasConflict || r.Kind != ConflictTimestamp {
			t.Fatalf("want TIMESTAMP_MISMATCH, got %+v", r)
		}
	})

	t.Run("local earlier is fine", func(t *testing.T) {
		local := Entity{"updatedAt": earlier}
		server := Entity{"updatedAt": later}
		if r := Detect("User", "1", local, server); r.HasConflict {
			t.Fatalf("server being newer is the normal case: %+v", r)
		}
	})

	t.Run("rfc3339 strings", func(t *testing.T) {
		local := Entity{"updatedAt": later.Format(time.RFC3339Nano)}
		server := Entity{"updatedAt": earlier.Format(time.RFC3339Nano)}
		r := Detect("User", "1", local, server)
		if !r.HasConflict || r.Kind != ConflictTimestamp {
			t.Fatalf("want TIMESTAMP_MISMATCH from string timestamps, got %+v", r)
		}
	})

	t.Run("unix millis", func(t *testing.T) {
		local := Entity{"updatedAt": float64(later.UnixMilli())}
		server := Entity{"updatedAt": float64(earlier.UnixMilli())}
		r := Detect("User", "1", local, server)
		if !r.HasConflict || r.Kind != ConflictTimestamp {
			t.Fatalf("want TIMESTAMP_MISMATCH from millis, got %+v", r)
		}
	})
}

func TestDetectFieldConflict(t *testing.T) {
	local := Entity{
		"id":         "1",
		"__typename": "User",
		"version":    2,
		"updatedAt":  "2026-08-23T10:00:00Z",
		"name":       "local",
		"email":      "a@b.c",
		"bio":        "same",
		"localOnly":  "x",
	}
	server := Entity{
		"id":         "1",
		"__typename": "User",
		"version":    2,
		"updatedAt":  "2026-08-23T10:00:00Z",
		"name":       "server",
		"email":      "z@b.c",
		"bio":        "same",
		"serverOnly": "y",
	}

	r := Detect("User", "1", local, server)
	if !r.HasConflict || r.Kind != ConflictField {
		t.Fatalf("want FIELD_CONFLICT, got %+v", r)
	}
	want := []string{"email", "name"}
	if !reflect.DeepEqual(r.ConflictingFields, want) {
		t.Fatalf("ConflictingFields = %v, want %v (sorted, metadata excluded)", r.ConflictingFields, want)
	}
}

func TestDetectNoConflict(t *testing.T) {
	e := Entity{"name": "same", "version": 1}
	r := Detect("User", "1", e, e.Clone())
	if r.HasConflict {
		t.Fatalf("identical entities conflicted: %+v", r)
	}
	if r := Detect("User", "1", nil, e); r.HasConflict {
		t.Fatalf("nil local conflicted: %+v", r)
	}
	if r := Detect("User", "1", e, nil); r.HasConflict {
		t.Fatalf("nil server conflicted: %+v", r)
	}
}

func TestResolveStrategies(t *testing.T) {
	report := &ConflictReport{
		HasConflict:  true,
		Kind:         ConflictField,
		Typename:     "User",
		ID:           "1",
		LocalEntity:  Entity{"name": "local", "bio": "kept", "empty": nil},
		ServerEntity: Entity{"name": "server", "email": "s@x.y", "bio": nil},
	}

	t.Run("server wins", func(t *testing.T) {
		got, err := Resolve(report, ServerWins)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !reflect.DeepEqual(got, report.ServerEntity) {
			t.Fatalf("got %v", got)
		}
		got["name"] = "mutated"
		if report.ServerEntity["name"] != "server" {
			t.Fatalf("Resolve must return a copy")
		}
	})

	t.Run("client wins", func(t *testing.T) {
		got, err := Resolve(report, ClientWins)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !reflect.DeepEqual(got, report.LocalEntity) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("merge", func(t *testing.T) {
		got, err := Resolve(report, Merge)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		// Server base; null/absent server fields filled from non-null local.
		want := Entity{"name": "server", "email": "s@x.y", "bio": "kept"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("merge = %v, want %v", got, want)
		}
	})

	t.Run("manual", func(t *testing.T) {
		_, err := Resolve(report, Manual)
		var cre *ConflictResolutionError
		if !errors.As(err, &cre) || cre.Report != report {
			t.Fatalf("expected *ConflictResolutionError carrying the report, got %v", err)
		}
	})

	t.Run("empty defaults to server wins", func(t *testing.T) {
		got, err := Resolve(report, "")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !reflect.DeepEqual(got, report.ServerEntity) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("unknown strategy", func(t *testing.T) {
		if _, err := Resolve(report, "COIN_FLIP"); err == nil {
			t.Fatalf("unknown strategy must error")
		}
	})
}
