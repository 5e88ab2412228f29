// Package cachekey folds compilation inputs into cache keys.
//
// A Spec is an ordered, append-only list of typed components. Its Hash is the
// SHA-256 of the components encoded as tag, length and payload, so no two
// different component lists share an encoding.
package cachekey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

type componentKind byte

const (
	kindString componentKind = 's'
	kindBytes  componentKind = 'b'
	kindHash   componentKind = 'h'
)

type component struct {
	kind componentKind
	data []byte
}

// Spec is the ordered list of key components.
type Spec struct {
	parts []component
}

// New starts a Spec with a namespace prefix.
func New(namespace string) Spec {
	return Spec{}.Text(namespace)
}

// Text appends a string component.
func (s Spec) Text(v string) Spec {
	return s.add(kindString, []byte(v))
}

// Bytes appends raw content.
func (s Spec) Bytes(v []byte) Spec {
	return s.add(kindBytes, v)
}

// Fingerprint appends an already computed content hash.
func (s Spec) Fingerprint(hexDigest string) Spec {
	return s.add(kindHash, []byte(hexDigest))
}

func (s Spec) add(kind componentKind, data []byte) Spec {
	parts := make([]component, len(s.parts), len(s.parts)+1)
	copy(parts, s.parts)

	buf := make([]byte, len(data))
	copy(buf, data)

	return Spec{parts: append(parts, component{kind: kind, data: buf})}
}

// Len is the number of components folded so far.
func (s Spec) Len() int { return len(s.parts) }

// Hash returns the lowercase hex SHA-256 of the encoded components.
func (s Spec) Hash() string {
	h := sha256.New()

	var lenBuf [binary.MaxVarintLen64]byte
	for _, p := range s.parts {
		h.Write([]byte{byte(p.kind)})
		n := binary.PutUvarint(lenBuf[:], uint64(len(p.data)))
		h.Write(lenBuf[:n])
		h.Write(p.data)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Describe renders the components for debug logging. Raw content is shown
// by size only.
func (s Spec) Describe() string {
	out := make([]string, 0, len(s.parts))
	for _, p := range s.parts {
		switch p.kind {
		case kindBytes:
			out = append(out, fmt.Sprintf("<%d bytes>", len(p.data)))
		default:
			out = append(out, string(p.data))
		}
	}

	return strings.Join(out, " | ")
}
