package field

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/pthm-cable/flowgrid/grid"
)

// Signature is the stable cache key for a field request: the
// order-independent goal cell set plus the obstacle version the request
// was made against. Two requests with equal signatures want the identical
// field.
type Signature struct {
	key     string
	version uint64
}

// NormalizeGoals returns a sorted, deduplicated copy of a goal set. The
// input is left untouched.
func NormalizeGoals(goals []grid.Cell) []grid.Cell {
	out := make([]grid.Cell, len(goals))
	copy(out, goals)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})

	n := 0
	for i, c := range out {
		if i > 0 && c == out[n-1] {
			continue
		}
		out[n] = c
		n++
	}
	return out[:n]
}

// NewSignature builds the signature for a normalized goal set at an
// obstacle version. Goal order does not matter; callers should pass the
// result of NormalizeGoals.
func NewSignature(goals []grid.Cell, version uint64) Signature {
	buf := make([]byte, 8+len(goals)*8)
	binary.LittleEndian.PutUint64(buf, version)
	for i, c := range goals {
		binary.LittleEndian.PutUint32(buf[8+i*8:], uint32(int32(c.X)))
		binary.LittleEndian.PutUint32(buf[12+i*8:], uint32(int32(c.Y)))
	}
	return Signature{key: string(buf), version: version}
}

// Key returns the exact map key for this signature.
func (s Signature) Key() string { return s.key }

// Version returns the obstacle version embedded in the signature.
func (s Signature) Version() uint64 { return s.version }

// String returns a short digest for logs.
func (s Signature) String() string {
	h := fnv.New64a()
	h.Write([]byte(s.key))
	return fmt.Sprintf("v%d-%08x", s.version, h.Sum64()&0xffffffff)
}
