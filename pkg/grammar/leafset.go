package grammar

import (
	"math/bits"
	"strings"
)

// LeafSet is a set of element IDs backed by a bitmap. Sets returned from a
// lookup cache are shared and must be treated as read-only; use Clone before
// mutating.
type LeafSet struct {
	words []uint64
}

// NewLeafSet returns a set holding ids.
func NewLeafSet(ids ...ElementID) LeafSet {
	var s LeafSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *LeafSet) grow(word int) {
	if word < len(s.words) {
		return
	}
	words := make([]uint64, word+1)
	copy(words, s.words)
	s.words = words
}

// Add inserts id and reports whether the set changed.
func (s *LeafSet) Add(id ElementID) bool {
	if id < 0 {
		return false
	}
	w, b := int(id)>>6, uint(id)&63
	s.grow(w)
	if s.words[w]&(1<<b) != 0 {
		return false
	}
	s.words[w] |= 1 << b
	return true
}

// Contains reports whether id is in the set.
func (s LeafSet) Contains(id ElementID) bool {
	if id < 0 {
		return false
	}
	w := int(id) >> 6
	return w < len(s.words) && s.words[w]&(1<<(uint(id)&63)) != 0
}

// UnionWith adds every member of other and reports whether the set changed.
func (s *LeafSet) UnionWith(other LeafSet) bool {
	changed := false
	if len(other.words) > len(s.words) {
		s.grow(len(other.words) - 1)
	}
	for i, w := range other.words {
		if merged := s.words[i] | w; merged != s.words[i] {
			s.words[i] = merged
			changed = true
		}
	}
	return changed
}

// Union returns a new set holding the members of both.
func (s LeafSet) Union(other LeafSet) LeafSet {
	out := s.Clone()
	out.UnionWith(other)
	return out
}

// IsSubsetOf reports whether every member of s is in other.
func (s LeafSet) IsSubsetOf(other LeafSet) bool {
	for i, w := range s.words {
		var o uint64
		if i < len(other.words) {
			o = other.words[i]
		}
		if w&^o != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same members.
func (s LeafSet) Equal(other LeafSet) bool {
	return s.IsSubsetOf(other) && other.IsSubsetOf(s)
}

// Len returns the number of members.
func (s LeafSet) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty reports whether the set has no members.
func (s LeafSet) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s LeafSet) Clone() LeafSet {
	if s.words == nil {
		return LeafSet{}
	}
	words := make([]uint64, len(s.words))
	copy(words, s.words)
	return LeafSet{words: words}
}

// IDs returns the members in ascending order.
func (s LeafSet) IDs() []ElementID {
	out := make([]ElementID, 0, s.Len())
	s.Each(func(id ElementID) {
		out = append(out, id)
	})
	return out
}

// Each calls fn for every member in ascending order.
func (s LeafSet) Each(fn func(ElementID)) {
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(ElementID(i<<6 + b))
			w &= w - 1
		}
	}
}

// Elements resolves the members against g.
func (s LeafSet) Elements(g *Grammar) []*Element {
	out := make([]*Element, 0, s.Len())
	s.Each(func(id ElementID) {
		out = append(out, g.elements[id])
	})
	return out
}

// Names renders the member names against g, for diagnostics.
func (s LeafSet) Names(g *Grammar) string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	s.Each(func(id ElementID) {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(g.elements[id].name)
	})
	sb.WriteByte('}')
	return sb.String()
}
