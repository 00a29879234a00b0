package grammar

import (
	"slices"
	"strings"
)

// BranchSet names the parse branches active for a query. A nil set applies
// no filter: every branch-tagged slot is active. Names the grammar does not
// declare are simply never matched, so unknown branches degrade to
// "inactive" instead of failing.
type BranchSet struct {
	names []string
}

// NewBranchSet returns a filtering set with the given branches active.
func NewBranchSet(names ...string) *BranchSet {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return &BranchSet{names: out}
}

// Has reports whether the branch is active.
func (b *BranchSet) Has(name string) bool {
	if b == nil {
		return true
	}
	_, found := slices.BinarySearch(b.names, name)
	return found
}

// Names returns the active branch names, sorted. Nil for an unfiltered set.
func (b *BranchSet) Names() []string {
	if b == nil {
		return nil
	}
	return slices.Clone(b.names)
}

// Union returns a set with the branches of both. Unfiltered wins.
func (b *BranchSet) Union(other *BranchSet) *BranchSet {
	if b == nil || other == nil {
		return nil
	}
	return NewBranchSet(append(slices.Clone(b.names), other.names...)...)
}

// Key identifies the set for memoization.
func (b *BranchSet) Key() string {
	if b == nil {
		return "*"
	}
	return "[" + strings.Join(b.names, ",") + "]"
}

func (b *BranchSet) String() string { return b.Key() }

// active reports whether a slot exists under the branch set.
func (b *BranchSet) active(c Child) bool {
	return c.Branch == "" || b.Has(c.Branch)
}
