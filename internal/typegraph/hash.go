package typegraph

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/zeebo/xxh3"
)

// Sentinel values folded into a signature instead of recursing.
const (
	// selfMarker stands in for a node that is already on the current walk
	// path. Cycles terminate at the marker, so mutually recursive types
	// hash in one pass.
	selfMarker uint64 = 0x9e3779b97f4a7c15
	// danglingMarker stands in for an edge that resolves to no node.
	// ValidateRefs reports those as structural errors; the hasher stays
	// total so it can run on graphs mid-construction.
	danglingMarker uint64 = 0xc2b2ae3d27d4eb4f
)

const maxInt = int(^uint(0) >> 1)

// Hasher computes canonical structural signatures over a graph. Two nodes
// receive the same signature exactly when kind, declared name, payload and
// the signatures of everything reachable from them agree. Nodes outside any
// cycle are memoized; nodes inside a cycle are rehashed from scratch on
// every call so the value never depends on which cycle member was hashed
// first.
type Hasher struct {
	g    *Graph
	memo map[NodeID]uint64
}

// NewHasher creates a hasher over g. The hasher caches signatures; create a
// fresh one after mutating the graph.
func NewHasher(g *Graph) *Hasher {
	return &Hasher{g: g, memo: make(map[NodeID]uint64)}
}

// Signature returns the structural signature of id.
func (h *Hasher) Signature(id NodeID) uint64 {
	sig, _ := h.signature(id, make(map[NodeID]int), 0)
	return sig
}

// signature hashes one node. visiting maps the ids on the current walk path
// to their frame depth. The second result is the shallowest in-progress
// frame the computation re-entered (maxInt when none); a signature is safe
// to memoize only when the walk re-entered nothing at or above this frame,
// which is exactly the nodes that sit in no cycle. Their values are
// path-independent because the self marker is a fixed constant.
func (h *Hasher) signature(id NodeID, visiting map[NodeID]int, depth int) (uint64, int) {
	if sig, ok := h.memo[id]; ok {
		return sig, maxInt
	}
	if d, ok := visiting[id]; ok {
		return selfMarker, d
	}
	n, ok := h.g.Node(id)
	if !ok {
		return danglingMarker, maxInt
	}

	visiting[id] = depth
	defer delete(visiting, id)

	minTouched := maxInt
	child := func(cid NodeID) uint64 {
		sig, touched := h.signature(cid, visiting, depth+1)
		if touched < minTouched {
			minTouched = touched
		}
		return sig
	}

	buf := make([]byte, 0, 128)
	buf = appendString(buf, string(n.Kind))
	buf = appendString(buf, n.Name)
	buf = appendBool(buf, n.Nullable)

	switch n.Kind {
	case KindPrimitive:
		buf = appendString(buf, n.Primitive)
	case KindLiteral:
		buf = appendLiteral(buf, n.Literal)
	case KindEnum:
		buf = binary.AppendUvarint(buf, uint64(len(n.EnumValues)))
		for _, v := range n.EnumValues {
			buf = appendLiteral(buf, v)
		}
	case KindObject:
		buf = binary.AppendUvarint(buf, uint64(len(n.Properties)))
		for _, p := range n.Properties {
			buf = appendString(buf, p.Name)
			buf = appendBool(buf, p.Required)
			buf = binary.LittleEndian.AppendUint64(buf, child(p.Type))
			buf = binary.LittleEndian.AppendUint64(buf, p.Constraints.digest())
		}
	case KindArray:
		buf = binary.LittleEndian.AppendUint64(buf, child(n.Element))
	case KindRecord:
		buf = binary.LittleEndian.AppendUint64(buf, child(n.Value))
	case KindUnion:
		// Member order is not significant: A|B and B|A are the same type.
		sigs := make([]uint64, len(n.Members))
		for i, m := range n.Members {
			sigs[i] = child(m)
		}
		sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })
		buf = binary.AppendUvarint(buf, uint64(len(sigs)))
		for _, s := range sigs {
			buf = binary.LittleEndian.AppendUint64(buf, s)
		}
	case KindReference:
		buf = binary.LittleEndian.AppendUint64(buf, child(n.Target))
	case KindGeneric:
		buf = binary.AppendUvarint(buf, uint64(len(n.TypeArgs)))
		for _, a := range n.TypeArgs {
			buf = binary.LittleEndian.AppendUint64(buf, child(a))
		}
	}

	sig := xxh3.Hash(buf)
	if minTouched > depth {
		h.memo[id] = sig
	}
	return sig, minTouched
}

// digest folds a constraint set into a single value for property hashing.
// Properties with different constraints are structurally different even
// when their types agree.
func (c *Constraints) digest() uint64 {
	if c == nil {
		return 0
	}
	buf := make([]byte, 0, 64)
	buf = appendFloatPtr(buf, c.Minimum)
	buf = appendFloatPtr(buf, c.Maximum)
	buf = appendFloatPtr(buf, c.ExclusiveMinimum)
	buf = appendFloatPtr(buf, c.ExclusiveMaximum)
	buf = appendFloatPtr(buf, c.MultipleOf)
	buf = appendIntPtr(buf, c.MinLength)
	buf = appendIntPtr(buf, c.MaxLength)
	buf = appendStringPtr(buf, c.Pattern)
	buf = appendStringPtr(buf, c.Format)
	buf = appendIntPtr(buf, c.MinItems)
	buf = appendIntPtr(buf, c.MaxItems)
	buf = appendBoolPtr(buf, c.UniqueItems)
	buf = appendStringPtr(buf, c.Default)
	return xxh3.Hash(buf)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// appendLiteral encodes a literal value canonically. All numeric types
// collapse to float64 so a literal decoded from JSON and one produced by
// the scanner hash identically.
func appendLiteral(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 0)
	case bool:
		buf = append(buf, 1)
		return appendBool(buf, x)
	case string:
		buf = append(buf, 2)
		return appendString(buf, x)
	case float64:
		buf = append(buf, 3)
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	case float32:
		return appendLiteral(buf, float64(x))
	case int:
		return appendLiteral(buf, float64(x))
	case int64:
		return appendLiteral(buf, float64(x))
	default:
		buf = append(buf, 9)
		return appendString(buf, fmt.Sprint(x))
	}
}

func appendFloatPtr(buf []byte, p *float64) []byte {
	if p == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(*p))
}

func appendIntPtr(buf []byte, p *int) []byte {
	if p == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return binary.AppendVarint(buf, int64(*p))
}

func appendStringPtr(buf []byte, p *string) []byte {
	if p == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendString(buf, *p)
}

func appendBoolPtr(buf []byte, p *bool) []byte {
	if p == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendBool(buf, *p)
}
