package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEntityRoundTrip(t *testing.T) {
	payload := []byte(`{"name":"ada"}`)
	frame := EncodeEntity(payload)

	got, err := DecodeEntity(frame)
	if err != nil {
		t.Fatalf("DecodeEntity: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}

	empty := EncodeEntity(nil)
	got, err = DecodeEntity(empty)
	if err != nil {
		t.Fatalf("DecodeEntity(empty): %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty payload round-tripped to %q", got)
	}
}

func TestDecodeEntityRejectsCorruption(t *testing.T) {
	frame := EncodeEntity([]byte("payload"))

	cases := map[string][]byte{
		"empty":          {},
		"short":          frame[:5],
		"bad magic":      append([]byte("XXXX"), frame[4:]...),
		"bad version":    mutate(frame, 4, 0xFF),
		"wrong kind":     mutate(frame, 5, kindQuery),
		"trailing bytes": append(append([]byte{}, frame...), 0x00),
		"truncated":      frame[:len(frame)-1],
	}
	for name, b := range cases {
		if _, err := DecodeEntity(b); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: want ErrCorrupt, got %v", name, err)
		}
	}
}

func TestQueryRoundTrip(t *testing.T) {
	in := QueryFrame{
		Stale:   false,
		Name:    "listUsers",
		Args:    []byte(`{"limit":10}`),
		Payload: []byte(`["u1","u2"]`),
	}
	frame, err := EncodeQuery(in)
	if err != nil {
		t.Fatalf("EncodeQuery: %v", err)
	}

	got, err := DecodeQuery(frame)
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if got.Stale != in.Stale || got.Name != in.Name ||
		!bytes.Equal(got.Args, in.Args) || !bytes.Equal(got.Payload, in.Payload) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestQueryStaleFlagSurvivesRewrite(t *testing.T) {
	in := QueryFrame{Name: "q", Args: []byte("{}"), Payload: []byte("v")}
	frame, err := EncodeQuery(in)
	if err != nil {
		t.Fatalf("EncodeQuery: %v", err)
	}

	f, err := DecodeQuery(frame)
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if f.Stale {
		t.Fatalf("fresh frame decoded stale")
	}

	f.Stale = true
	frame2, err := EncodeQuery(f)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	f2, err := DecodeQuery(frame2)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if !f2.Stale || f2.Name != "q" || !bytes.Equal(f2.Payload, []byte("v")) {
		t.Fatalf("stale rewrite lost data: %+v", f2)
	}
}

func TestEncodeQueryNameValidation(t *testing.T) {
	if _, err := EncodeQuery(QueryFrame{Name: "", Payload: []byte("v")}); err == nil {
		t.Fatalf("empty name must be rejected")
	}
	long := strings.Repeat("a", 0x10000)
	if _, err := EncodeQuery(QueryFrame{Name: long, Payload: []byte("v")}); err == nil {
		t.Fatalf("oversized name must be rejected")
	}
}

func TestDecodeQueryRejectsCorruption(t *testing.T) {
	frame, err := EncodeQuery(QueryFrame{Name: "q", Args: []byte("{}"), Payload: []byte("payload")})
	if err != nil {
		t.Fatalf("EncodeQuery: %v", err)
	}

	cases := map[string][]byte{
		"empty":          {},
		"entity kind":    mutate(frame, 5, kindEntity),
		"trailing bytes": append(append([]byte{}, frame...), 0x00),
		"truncated":      frame[:len(frame)-1],
		"header only":    frame[:7],
	}
	for name, b := range cases {
		if _, err := DecodeQuery(b); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: want ErrCorrupt, got %v", name, err)
		}
	}
}

func mutate(b []byte, i int, v byte) []byte {
	out := append([]byte{}, b...)
	out[i] = v
	return out
}
