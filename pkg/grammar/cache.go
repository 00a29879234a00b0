package grammar

import (
	"sync"

	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Cache holds the lookahead sets derived for one element under one branch
// configuration. It is computed once and read-only afterwards.
type Cache struct {
	id          ElementID
	all         LeafSet
	first       LeafSet
	required    LeafSet
	allTokens   LeafSet // canonical token IDs of all
	firstTokens LeafSet // canonical token IDs of first
}

// Element returns the ID of the element the cache belongs to.
func (c *Cache) Element() ElementID { return c.id }

// AllPossibleLeafs returns every leaf reachable under the element.
func (c *Cache) AllPossibleLeafs() LeafSet { return c.all }

// FirstPossibleLeafs returns the leafs that can be the first token matched.
func (c *Cache) FirstPossibleLeafs() LeafSet { return c.first }

// FirstRequiredLeafs returns the first leafs that cannot be skipped over.
func (c *Cache) FirstRequiredLeafs() LeafSet { return c.required }

// ContainsLeaf reports whether leaf, or a leaf interchangeable with it, is
// reachable under the element.
func (c *Cache) ContainsLeaf(leaf *Element) bool {
	if leaf == nil {
		return false
	}
	if c.all.Contains(leaf.id) {
		return true
	}
	return leaf.tok != nil && c.allTokens.Contains(ElementID(leaf.tok.Canonical().ID()))
}

// ContainsToken reports whether a leaf over t is reachable under the element.
func (c *Cache) ContainsToken(t *token.Type) bool {
	return t != nil && c.allTokens.Contains(ElementID(t.Canonical().ID()))
}

// CanStartWithLeaf reports whether leaf, or an interchangeable leaf, is in
// FirstPossibleLeafs.
//
// Deprecated: use FirstPossibleLeafs or CanStartWithToken.
func (c *Cache) CanStartWithLeaf(leaf *Element) bool {
	if leaf == nil {
		return false
	}
	if c.first.Contains(leaf.id) {
		return true
	}
	return leaf.tok != nil && c.firstTokens.Contains(ElementID(leaf.tok.Canonical().ID()))
}

// CanStartWithToken reports whether the element can begin with t.
func (c *Cache) CanStartWithToken(t *token.Type) bool {
	return t != nil && c.firstTokens.Contains(ElementID(t.Canonical().ID()))
}

// View is the full set of caches of a grammar under one branch configuration.
type View struct {
	grammar  *Grammar
	branches *BranchSet
	caches   []*Cache

	derivedMu sync.Mutex
	derived   map[any]any
}

// Grammar returns the grammar the view was computed for.
func (v *View) Grammar() *Grammar { return v.grammar }

// Branches returns the branch configuration of the view (nil: unfiltered).
func (v *View) Branches() *BranchSet { return v.branches }

// Cache returns the cache of an element.
func (v *View) Cache(id ElementID) *Cache { return v.caches[id] }

// Derived returns the value stored under key, calling build on first use.
// Tables computed from a view live as long as the view and its grammar.
func (v *View) Derived(key any, build func(*View) any) any {
	v.derivedMu.Lock()
	defer v.derivedMu.Unlock()
	if d, ok := v.derived[key]; ok {
		return d
	}
	if v.derived == nil {
		v.derived = make(map[any]any)
	}
	d := build(v)
	v.derived[key] = d
	return d
}

// SlotActive reports whether slot i of e exists under the view's branches.
func (v *View) SlotActive(e *Element, i int) bool {
	return v.branches.active(e.children[i])
}

// Engine computes and memoizes lookup caches for a grammar. The unfiltered
// view is computed when the grammar is built; filtered views are computed on
// first use and then shared.
type Engine struct {
	grammar *Grammar
	base    *View

	mu    sync.Mutex
	views map[string]*View
}

func newEngine(g *Grammar) *Engine {
	en := &Engine{grammar: g, views: make(map[string]*View)}
	en.base = computeView(g, nil)
	en.views[en.base.branches.Key()] = en.base
	return en
}

// Grammar returns the grammar of the engine.
func (en *Engine) Grammar() *Grammar { return en.grammar }

// Cache returns the unfiltered cache of an element.
func (en *Engine) Cache(id ElementID) *Cache { return en.base.caches[id] }

// View returns the caches under a branch configuration. A nil set returns the
// unfiltered view.
func (en *Engine) View(branches *BranchSet) *View {
	if branches == nil {
		return en.base
	}
	key := branches.Key()
	en.mu.Lock()
	defer en.mu.Unlock()
	if v, ok := en.views[key]; ok {
		return v
	}
	v := computeView(en.grammar, branches)
	en.views[key] = v
	return v
}

func computeView(g *Grammar, branches *BranchSet) *View {
	n := len(g.elements)
	first := make([]LeafSet, n)
	required := make([]LeafSet, n)

	skippable := func(c Child) bool {
		return c.Optional || g.elements[c.Element].optional
	}

	// First sets only grow, so iterating until nothing changes reaches the
	// least fixpoint even through recursive rules.
	for changed := true; changed; {
		changed = false
		for _, e := range g.elements {
			acc := &first[e.id]
			switch e.kind {
			case KindLeaf:
				if acc.Add(e.id) {
					changed = true
				}
			case KindChameleon:
				if acc.Add(e.sentinel) {
					changed = true
				}
			case KindSequence:
				for _, c := range e.children {
					if !branches.active(c) {
						continue
					}
					if acc.UnionWith(first[c.Element]) {
						changed = true
					}
					if !skippable(c) {
						break
					}
				}
			case KindOneOf:
				for _, c := range e.children {
					if branches.active(c) && acc.UnionWith(first[c.Element]) {
						changed = true
					}
				}
			case KindIteration, KindWrapper:
				if acc.UnionWith(first[e.children[0].Element]) {
					changed = true
				}
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, e := range g.elements {
			acc := &required[e.id]
			switch e.kind {
			case KindLeaf:
				if acc.Add(e.id) {
					changed = true
				}
			case KindChameleon:
				if acc.Add(e.sentinel) {
					changed = true
				}
			case KindSequence:
				for _, c := range e.children {
					if !branches.active(c) || skippable(c) {
						continue
					}
					if acc.UnionWith(required[c.Element]) {
						changed = true
					}
					break
				}
			case KindOneOf:
				anySkippable := false
				for _, c := range e.children {
					if branches.active(c) && skippable(c) {
						anySkippable = true
						break
					}
				}
				if anySkippable {
					continue
				}
				for _, c := range e.children {
					if branches.active(c) && acc.UnionWith(required[c.Element]) {
						changed = true
					}
				}
			case KindIteration:
				if acc.UnionWith(required[e.children[0].Element]) {
					changed = true
				}
			case KindWrapper:
				// never required
			}
		}
	}

	v := &View{grammar: g, branches: branches, caches: make([]*Cache, n)}
	for _, e := range g.elements {
		c := &Cache{
			id:       e.id,
			all:      reachableLeafs(g, e.id, branches),
			first:    first[e.id],
			required: required[e.id],
		}
		c.allTokens = tokenIDs(g, c.all)
		c.firstTokens = tokenIDs(g, c.first)
		v.caches[e.id] = c
	}
	return v
}

// reachableLeafs walks the graph below id with a visited set. Chameleons
// contribute their sentinel only; embedded content is another vocabulary.
func reachableLeafs(g *Grammar, id ElementID, branches *BranchSet) LeafSet {
	var leafs, visited LeafSet
	stack := []ElementID{id}
	visited.Add(id)
	push := func(next ElementID) {
		if next != NoElement && visited.Add(next) {
			stack = append(stack, next)
		}
	}
	for len(stack) > 0 {
		cur := g.elements[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		switch cur.kind {
		case KindLeaf:
			leafs.Add(cur.id)
		case KindChameleon:
			leafs.Add(cur.sentinel)
		default:
			for _, c := range cur.children {
				if branches.active(c) {
					push(c.Element)
				}
			}
			push(cur.separator)
		}
	}
	return leafs
}

func tokenIDs(g *Grammar, leafs LeafSet) LeafSet {
	var out LeafSet
	leafs.Each(func(id ElementID) {
		if t := g.elements[id].tok; t != nil {
			out.Add(ElementID(t.Canonical().ID()))
		}
	})
	return out
}
