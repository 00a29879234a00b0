// Package grammar models a dialect grammar as an arena of element types and
// derives, once per grammar, the lookahead sets that drive completion and
// error-tolerant parsing.
//
// Elements address each other by ElementID, so recursive rules
// (expression -> ( expression )) are plain index cycles. Every graph walk in
// this package either carries a visited set or iterates to a fixpoint.
package grammar

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// ElementID addresses an element inside its grammar's arena.
type ElementID int32

// NoElement marks an absent element reference.
const NoElement ElementID = -1

// Kind is the variant tag of an element.
type Kind uint8

// Element kinds.
const (
	KindLeaf Kind = iota
	KindSequence
	KindOneOf
	KindIteration
	KindWrapper
	KindChameleon
)

var kindNames = [...]string{
	KindLeaf:      "leaf",
	KindSequence:  "sequence",
	KindOneOf:     "one_of",
	KindIteration: "iteration",
	KindWrapper:   "wrapper",
	KindChameleon: "chameleon",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// WrapPolicy is a formatting hint carried by iterations. The engine never
// consults it.
type WrapPolicy uint8

// Wrap policies.
const (
	WrapNone WrapPolicy = iota
	WrapIfLong
	WrapChopDownIfLong
	WrapAlways
)

var wrapNames = map[string]WrapPolicy{
	"":                  WrapNone,
	"none":              WrapNone,
	"wrap_if_long":      WrapIfLong,
	"chop_down_if_long": WrapChopDownIfLong,
	"always":            WrapAlways,
}

// ParseWrapPolicy parses a wrap policy name.
func ParseWrapPolicy(s string) (WrapPolicy, error) {
	if p, ok := wrapNames[strings.ToLower(s)]; ok {
		return p, nil
	}
	return WrapNone, fmt.Errorf("unknown wrap policy %q", s)
}

// Child is a slot of a composite element.
type Child struct {
	Element  ElementID
	Optional bool
	Branch   string // parse branch that must be active for the slot to exist
}

// Element is one node of the grammar graph.
type Element struct {
	id       ElementID
	name     string
	kind     Kind
	optional bool
	grammar  *Grammar

	// leaf
	tok        *token.Type
	identifier bool

	// sequence, one_of, iteration (children[0]), wrapper (children[0])
	children  []Child
	separator ElementID
	trailing  bool
	wrap      WrapPolicy

	// chameleon
	dialect     string
	open, close *token.Type
	sentinel    ElementID
}

// ID returns the arena index of the element.
func (e *Element) ID() ElementID { return e.id }

// Name returns the element name. Anonymous leafs are named after their
// token with a position suffix.
func (e *Element) Name() string { return e.name }

// Kind returns the variant tag.
func (e *Element) Kind() Kind { return e.kind }

// Grammar returns the owning grammar.
func (e *Element) Grammar() *Grammar { return e.grammar }

// IsOptional reports whether the element may match nothing. Wrappers are
// always optional; an alternation is optional when any alternative is.
func (e *Element) IsOptional() bool { return e.optional }

// TokenType returns the token of a leaf, or the opaque sentinel token of a
// chameleon's sentinel leaf. It is nil for composites.
func (e *Element) TokenType() *token.Type { return e.tok }

// IsIdentifier reports whether a leaf matches an identifier class.
func (e *Element) IsIdentifier() bool { return e.identifier }

// IsLeaf reports whether the element is a leaf.
func (e *Element) IsLeaf() bool { return e.kind == KindLeaf }

// IsSameAs reports whether two leafs are interchangeable: the same element,
// or leafs over equivalent tokens (aliases included).
func (e *Element) IsSameAs(other *Element) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e == other {
		return true
	}
	if e.kind != KindLeaf || other.kind != KindLeaf {
		return false
	}
	return e.tok.Equivalent(other.tok)
}

// Children returns the slots of a composite element. For an iteration the
// single slot is the repeated element; the separator is separate.
func (e *Element) Children() []Child { return e.children }

// ChildElements returns the elements of the composite's slots in order.
func (e *Element) ChildElements() []*Element {
	out := make([]*Element, len(e.children))
	for i, c := range e.children {
		out[i] = e.grammar.elements[c.Element]
	}
	return out
}

// Child returns the element in slot i.
func (e *Element) Child(i int) *Element {
	return e.grammar.elements[e.children[i].Element]
}

// SlotSkippable reports whether slot i may be passed over without matching.
func (e *Element) SlotSkippable(i int) bool {
	c := e.children[i]
	return c.Optional || e.grammar.elements[c.Element].optional
}

// Separator returns the separator of an iteration, or nil.
func (e *Element) Separator() *Element {
	if e.separator == NoElement {
		return nil
	}
	return e.grammar.elements[e.separator]
}

// TrailingSeparator reports whether an iteration may end with its separator.
func (e *Element) TrailingSeparator() bool { return e.trailing }

// Wrap returns the formatting hint of an iteration.
func (e *Element) Wrap() WrapPolicy { return e.wrap }

// EmbeddedDialect returns the dialect a chameleon embeds.
func (e *Element) EmbeddedDialect() string { return e.dialect }

// Boundaries returns the host tokens opening and closing a chameleon region.
// Close may be nil, in which case the region runs to the end of input.
func (e *Element) Boundaries() (open, close *token.Type) { return e.open, e.close }

// Sentinel returns the opaque leaf standing for a chameleon's content.
func (e *Element) Sentinel() *Element {
	if e.sentinel == NoElement {
		return nil
	}
	return e.grammar.elements[e.sentinel]
}

// LookupCache returns the unfiltered lookup cache of the element.
func (e *Element) LookupCache() *Cache {
	return e.grammar.Engine().Cache(e.id)
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.name
}

// Grammar is an immutable element arena with a designated root.
type Grammar struct {
	name     string
	language string
	family   *token.Family
	elements []*Element
	byName   map[string]*Element
	root     ElementID
	branches []string

	engine *Engine
}

// Name returns the grammar name.
func (g *Grammar) Name() string { return g.name }

// Language returns the language the grammar parses (e.g. "sql", "psql").
func (g *Grammar) Language() string { return g.language }

// Family returns the token family of the grammar.
func (g *Grammar) Family() *token.Family { return g.family }

// Root returns the root element.
func (g *Grammar) Root() *Element { return g.elements[g.root] }

// Element returns the element with the given ID.
func (g *Grammar) Element(id ElementID) *Element {
	if id < 0 || int(id) >= len(g.elements) {
		return nil
	}
	return g.elements[id]
}

// Lookup returns the named element.
func (g *Grammar) Lookup(name string) (*Element, bool) {
	e, ok := g.byName[name]
	return e, ok
}

// MustLookup returns the named element or panics.
func (g *Grammar) MustLookup(name string) *Element {
	e, ok := g.byName[name]
	if !ok {
		panic(fmt.Sprintf("grammar %s: no element %q", g.name, name))
	}
	return e
}

// Len returns the number of elements in the arena.
func (g *Grammar) Len() int { return len(g.elements) }

// Elements returns the arena in ID order.
func (g *Grammar) Elements() []*Element {
	out := make([]*Element, len(g.elements))
	copy(out, g.elements)
	return out
}

// Branches returns the parse branches the grammar declares.
func (g *Grammar) Branches() []string {
	out := make([]string, len(g.branches))
	copy(out, g.branches)
	return out
}

// Chameleons returns the chameleon elements of the grammar.
func (g *Grammar) Chameleons() []*Element {
	var out []*Element
	for _, e := range g.elements {
		if e.kind == KindChameleon {
			out = append(out, e)
		}
	}
	return out
}

// Engine returns the lookup cache engine of the grammar.
func (g *Grammar) Engine() *Engine { return g.engine }
