package lookahead

import (
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
)

// Result is the outcome of a next-leaf query.
type Result struct {
	// Leafs are the leaf elements that may be matched next.
	Leafs grammar.LeafSet
	// EndAllowed reports that every open scope can be closed here, so end
	// of input is itself a valid continuation.
	EndAllowed bool
	// Truncated reports that expansion stopped early, either at a
	// left-recursive slot or at a malformed path. Leafs may then be
	// incomplete.
	Truncated bool
}

// Resolver computes next-leaf sets for paths into one grammar. It only
// reads the grammar's lookup caches and is safe for concurrent use.
type Resolver struct {
	grammar *grammar.Grammar
}

// NewResolver returns a resolver for paths into g.
func NewResolver(g *grammar.Grammar) *Resolver {
	return &Resolver{grammar: g}
}

// Grammar returns the grammar the resolver serves.
func (r *Resolver) Grammar() *grammar.Grammar { return r.grammar }

// ResolveNextLeafs returns the leafs that are syntactically valid as the
// next token at path, with the given parse branches active (nil: all). An
// empty set means only the end of the construct may follow.
func (r *Resolver) ResolveNextLeafs(path *Path, branches *grammar.BranchSet) grammar.LeafSet {
	return r.Resolve(path, branches).Leafs
}

// Resolve is ResolveNextLeafs with end-of-input and truncation reported.
//
// Starting at the innermost scope it unions the first sets of the slots that
// follow the cursor until a mandatory slot is reached. When every remaining
// slot of a scope can be skipped the scope may close, and the walk continues
// in the enclosing scope after its open slot. The cost is bounded by the
// path depth and the slot counts; no tokens are scanned.
func (r *Resolver) Resolve(path *Path, branches *grammar.BranchSet) Result {
	var res Result
	if path == nil {
		res.EndAllowed = true
		return res
	}
	view := r.grammar.Engine().View(branches)
	zone := leftEdge(path)

	seen := make(map[*Path]struct{})
	for cur := path; cur != nil; cur = cur.Parent {
		if _, ok := seen[cur]; ok {
			res.Truncated = true
			return res
		}
		seen[cur] = struct{}{}
		if !r.valid(cur) {
			res.Truncated = true
			return res
		}

		mandatory, truncated := r.continuation(view, cur, zone, &res.Leafs)
		if truncated {
			res.Truncated = true
		}
		if mandatory && !(cur.Index == -1 && skippableInParent(cur)) {
			return res
		}
	}
	res.EndAllowed = true
	return res
}

// valid rejects path nodes that do not address a slot of this grammar.
func (r *Resolver) valid(p *Path) bool {
	e := p.Element
	if e == nil || e.Grammar() != r.grammar {
		return false
	}
	if p.Index < -1 {
		return false
	}
	if p.Index >= 0 && e.Kind() != grammar.KindLeaf && e.Kind() != grammar.KindChameleon && SlotElement(e, p.Index) == nil {
		return false
	}
	return true
}

// continuation adds the leafs that may follow the cursor of p and reports
// whether the continuation is mandatory, i.e. p cannot close here.
func (r *Resolver) continuation(view *grammar.View, p *Path, zone map[*grammar.Element]bool, acc *grammar.LeafSet) (mandatory, truncated bool) {
	e := p.Element
	first := func(x *grammar.Element) {
		acc.UnionWith(view.Cache(x.ID()).FirstPossibleLeafs())
	}

	switch e.Kind() {
	case grammar.KindLeaf:
		if p.Index >= 0 {
			return false, false
		}
		acc.Add(e.ID())
		return !e.IsOptional(), false

	case grammar.KindChameleon:
		if p.Index >= 0 {
			return false, false
		}
		acc.Add(e.Sentinel().ID())
		return !e.IsOptional(), false

	case grammar.KindSequence:
		atStart := p.Index == -1
		for i := p.Index + 1; i < len(e.Children()); i++ {
			if !view.SlotActive(e, i) {
				continue
			}
			child := e.Child(i)
			if atStart && zone[child] {
				// Left recursion: the slot would re-enter a scope that has
				// not consumed anything yet. Stop expanding this branch, or
				// only this slot when it may be skipped.
				if e.SlotSkippable(i) {
					truncated = true
					continue
				}
				return true, true
			}
			first(child)
			if !e.SlotSkippable(i) {
				return true, truncated
			}
		}
		return false, truncated

	case grammar.KindOneOf:
		if p.Index >= 0 {
			return false, false
		}
		skippable := false
		for i, c := range e.ChildElements() {
			if !view.SlotActive(e, i) {
				continue
			}
			if zone[c] {
				truncated = true
				continue
			}
			first(c)
			if e.SlotSkippable(i) {
				skippable = true
			}
		}
		return !skippable, truncated

	case grammar.KindIteration:
		item := e.Child(0)
		switch p.Index {
		case -1:
			if zone[item] {
				return true, true
			}
			first(item)
			return !e.SlotSkippable(0), false
		case IterationElement:
			if sep := e.Separator(); sep != nil {
				first(sep)
				return false, false
			}
			first(item)
			return false, false
		default:
			first(item)
			return !e.SlotSkippable(0) && !e.TrailingSeparator(), false
		}

	case grammar.KindWrapper:
		if p.Index >= 0 {
			return false, false
		}
		child := e.Child(0)
		if zone[child] {
			return false, true
		}
		first(child)
		return false, false
	}
	return false, false
}

// leftEdge collects the elements of the scopes that have not consumed
// anything yet, from the innermost scope outward. Expanding any of them
// again from the cursor would be left recursion. Sequences and iterations
// are taken to be at their left edge while their first slot is open;
// optional slots skipped before it are not visible in the path.
func leftEdge(p *Path) map[*grammar.Element]bool {
	zone := make(map[*grammar.Element]bool)
	if p == nil || p.Index != -1 {
		return zone
	}
	seen := make(map[*Path]struct{})
	for cur := p; cur != nil && cur.Element != nil; cur = cur.Parent {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		if cur != p && !atLeftEdge(cur) {
			break
		}
		zone[cur.Element] = true
	}
	return zone
}

func atLeftEdge(p *Path) bool {
	switch p.Element.Kind() {
	case grammar.KindOneOf, grammar.KindWrapper:
		return true
	default:
		return p.Index <= 0
	}
}

// skippableInParent reports whether the slot p occupies in its parent is
// optional.
func skippableInParent(p *Path) bool {
	parent := p.Parent
	if parent == nil || parent.Element == nil || parent.Index < 0 {
		return false
	}
	e := parent.Element
	switch e.Kind() {
	case grammar.KindIteration:
		return false
	case grammar.KindSequence, grammar.KindOneOf, grammar.KindWrapper:
		if parent.Index < len(e.Children()) {
			return e.SlotSkippable(parent.Index)
		}
	}
	return false
}
