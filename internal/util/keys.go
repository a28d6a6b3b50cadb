package util

import (
	"crypto/sha256"
	"fmt"
)

// EntityKey builds the storage key for one cached entity.
func EntityKey(prefix, typename, id string) string {
	return prefix + ":" + typename + ":" + id
}

// QueryKey builds a deterministic storage key for a cached query from its
// name and the canonical JSON form of its arguments. The name stays
// readable; arguments are reduced to a short hash.
func QueryKey(prefix, name string, argsJSON []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(argsJSON)
	return fmt.Sprintf("%s:%s:%x", prefix, name, h.Sum(nil)[:8])
}
