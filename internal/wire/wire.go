// Package wire defines the framed storage format for cache entries.
// Frames are strictly validated: bad magic, wrong version, short reads,
// and trailing bytes are all ErrCorrupt, which readers treat as a
// self-heal signal (delete and miss).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindEntity byte = 1
	kindQuery  byte = 2

	flagStale byte = 1 << 0
)

var (
	ErrCorrupt = errors.New("cascade: corrupt cache entry")
	magic4     = [...]byte{'C', 'S', 'C', 'D'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entity: magic(4) | ver(1) | kind(1=entity) | vlen(u32 be) | payload(vlen)
func EncodeEntity(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntity)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeEntity(b []byte) ([]byte, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntity {
		return nil, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[6:10]))
	if vlen < 0 || vlen != len(b)-hdr { // strict framing: no trailing bytes
		return nil, ErrCorrupt
	}
	return b[hdr : hdr+vlen], nil
}

// QueryFrame is a cached query entry. Name and Args travel inside the
// frame so a stale flag flip can rewrite the entry without consulting
// anything else; Args is the canonical JSON form of the arguments.
type QueryFrame struct {
	Stale   bool
	Name    string
	Args    []byte
	Payload []byte
}

// Query:
//
//	magic(4) | ver(1) | kind(1=query) | flags(1)
//	nameLen(u16 be) | name | alen(u32 be) | args | vlen(u32 be) | payload
func EncodeQuery(f QueryFrame) ([]byte, error) {
	if l := len(f.Name); l == 0 || l > 0xFFFF {
		return nil, errors.New("cascade: invalid query name length in frame")
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 2 + len(f.Name) + 4 + len(f.Args) + 4 + len(f.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindQuery)

	var flags byte
	if f.Stale {
		flags |= flagStale
	}
	buf.WriteByte(flags)

	var u2 [2]byte
	var u4 [4]byte

	binary.BigEndian.PutUint16(u2[:], uint16(len(f.Name)))
	buf.Write(u2[:])
	buf.WriteString(f.Name)

	binary.BigEndian.PutUint32(u4[:], uint32(len(f.Args)))
	buf.Write(u4[:])
	buf.Write(f.Args)

	binary.BigEndian.PutUint32(u4[:], uint32(len(f.Payload)))
	buf.Write(u4[:])
	buf.Write(f.Payload)

	return buf.Bytes(), nil
}

func DecodeQuery(b []byte) (QueryFrame, error) {
	const hdr = 4 + 1 + 1 + 1
	var f QueryFrame
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindQuery {
		return f, ErrCorrupt
	}
	f.Stale = b[6]&flagStale != 0

	off := hdr

	if off+2 > len(b) {
		return QueryFrame{}, ErrCorrupt
	}
	nlen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if nlen <= 0 || nlen > len(b)-off {
		return QueryFrame{}, ErrCorrupt
	}
	f.Name = string(b[off : off+nlen])
	off += nlen

	if off+4 > len(b) {
		return QueryFrame{}, ErrCorrupt
	}
	alen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if alen < 0 || alen > len(b)-off {
		return QueryFrame{}, ErrCorrupt
	}
	f.Args = b[off : off+alen]
	off += alen

	if off+4 > len(b) {
		return QueryFrame{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict framing: no trailing bytes
		return QueryFrame{}, ErrCorrupt
	}
	f.Payload = b[off : off+vlen]

	return f, nil
}
