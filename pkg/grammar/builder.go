package grammar

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Ref is a reference from a composite slot to another element or, when no
// element has the name, to a token (an anonymous leaf is created per
// reference).
//
// The string form is "name", "?name" for an optional slot and "name@branch"
// for a slot that only exists while the parse branch is active.
type Ref struct {
	Name     string
	Optional bool
	Branch   string
}

// ParseRef parses the string form of a reference.
func ParseRef(s string) Ref {
	var r Ref
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "?") {
		r.Optional = true
		s = strings.TrimSpace(s[1:])
	}
	if i := strings.LastIndexByte(s, '@'); i > 0 {
		r.Branch = strings.TrimSpace(s[i+1:])
		s = strings.TrimSpace(s[:i])
	}
	r.Name = s
	return r
}

func (r Ref) String() string {
	s := r.Name
	if r.Optional {
		s = "?" + s
	}
	if r.Branch != "" {
		s += "@" + r.Branch
	}
	return s
}

// ElementOption configures an element definition.
type ElementOption func(*elementDef)

// Optional marks the element itself optional.
func Optional() ElementOption {
	return func(d *elementDef) { d.optional = true }
}

// Separated sets the separator of an iteration.
func Separated(ref string) ElementOption {
	return func(d *elementDef) { d.separator = ref }
}

// Trailing lets an iteration end with its separator.
func Trailing() ElementOption {
	return func(d *elementDef) { d.trailing = true }
}

// Wrapping sets the formatting hint of an iteration.
func Wrapping(p WrapPolicy) ElementOption {
	return func(d *elementDef) { d.wrap = p }
}

// AsIdentifier marks a leaf as an identifier regardless of its token category.
func AsIdentifier() ElementOption {
	return func(d *elementDef) { d.identifier = true }
}

type elementDef struct {
	name       string
	kind       Kind
	optional   bool
	tokenName  string
	identifier bool
	refs       []Ref
	separator  string
	trailing   bool
	wrap       WrapPolicy
	dialect    string
	open       string
	close      string
}

// Builder assembles a grammar from element definitions. Definitions may
// reference each other in any order and recursively; references are
// resolved by Build.
type Builder struct {
	name     string
	language string
	family   *token.Family
	root     string
	branches []string
	defs     []*elementDef
	byName   map[string]*elementDef
	errs     []error
}

// NewBuilder starts a grammar for the given language over a token family.
func NewBuilder(name, language string, family *token.Family) *Builder {
	return &Builder{
		name:     name,
		language: strings.ToLower(language),
		family:   family,
		byName:   make(map[string]*elementDef),
	}
}

// Branches declares the parse branches slots may be tagged with.
func (b *Builder) Branches(names ...string) *Builder {
	for _, n := range names {
		if !slices.Contains(b.branches, n) {
			b.branches = append(b.branches, n)
		}
	}
	return b
}

// Root sets the root element.
func (b *Builder) Root(name string) *Builder {
	b.root = name
	return b
}

func (b *Builder) define(d *elementDef, opts []ElementOption) *Builder {
	for _, opt := range opts {
		opt(d)
	}
	if _, exists := b.byName[d.name]; exists {
		b.errs = append(b.errs, configErr(b.name, d.name, ErrDuplicateElement, ""))
		return b
	}
	b.byName[d.name] = d
	b.defs = append(b.defs, d)
	return b
}

// Leaf defines a named leaf over a token type.
func (b *Builder) Leaf(name, tokenName string, opts ...ElementOption) *Builder {
	return b.define(&elementDef{name: name, kind: KindLeaf, tokenName: tokenName}, opts)
}

// Sequence defines an ordered list of slots.
func (b *Builder) Sequence(name string, refs []string, opts ...ElementOption) *Builder {
	return b.define(&elementDef{name: name, kind: KindSequence, refs: parseRefs(refs)}, opts)
}

// OneOf defines an alternation.
func (b *Builder) OneOf(name string, refs []string, opts ...ElementOption) *Builder {
	return b.define(&elementDef{name: name, kind: KindOneOf, refs: parseRefs(refs)}, opts)
}

// Iteration defines a repeated element; see Separated and Wrapping.
func (b *Builder) Iteration(name, ref string, opts ...ElementOption) *Builder {
	return b.define(&elementDef{name: name, kind: KindIteration, refs: parseRefs([]string{ref})}, opts)
}

// Wrapper defines an always-optional wrapper around one element.
func (b *Builder) Wrapper(name, ref string, opts ...ElementOption) *Builder {
	return b.define(&elementDef{name: name, kind: KindWrapper, refs: parseRefs([]string{ref})}, opts)
}

// Chameleon defines a region handed to another dialect. open and close
// name the host tokens delimiting the region; close may be empty.
func (b *Builder) Chameleon(name, dialect, open, close string, opts ...ElementOption) *Builder {
	return b.define(&elementDef{name: name, kind: KindChameleon, dialect: dialect, open: open, close: close}, opts)
}

func parseRefs(refs []string) []Ref {
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		out = append(out, ParseRef(r))
	}
	return out
}

// Build resolves references, validates the graph and computes the unfiltered
// lookup caches. Every configuration defect found is reported, joined.
func (b *Builder) Build() (*Grammar, error) {
	g := &Grammar{
		name:     b.name,
		language: b.language,
		family:   b.family,
		byName:   make(map[string]*Element, len(b.defs)),
		root:     NoElement,
		branches: slices.Clone(b.branches),
	}
	errs := slices.Clone(b.errs)
	if b.family == nil {
		return nil, configErr(b.name, "", ErrInvalidDefinition, "no token family")
	}

	for _, d := range b.defs {
		e := &Element{
			id:        ElementID(len(g.elements)),
			name:      d.name,
			kind:      d.kind,
			optional:  d.optional,
			grammar:   g,
			separator: NoElement,
			sentinel:  NoElement,
			trailing:  d.trailing,
			wrap:      d.wrap,
			dialect:   d.dialect,
		}
		g.elements = append(g.elements, e)
		g.byName[d.name] = e
	}

	for i, d := range b.defs {
		e := g.elements[i]
		switch d.kind {
		case KindLeaf:
			t, ok := b.family.Lookup(d.tokenName)
			if !ok {
				errs = append(errs, configErr(b.name, d.name, ErrUnknownToken, "%q", d.tokenName))
				continue
			}
			e.tok = t
			e.identifier = d.identifier || t.IsIdentifier()

		case KindSequence, KindOneOf, KindIteration, KindWrapper:
			if len(d.refs) == 0 || (len(d.refs) == 1 && d.refs[0].Name == "") {
				errs = append(errs, configErr(b.name, d.name, ErrEmptyComposite, ""))
				continue
			}
			for _, r := range d.refs {
				id, err := b.resolve(g, d.name, r.Name)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if r.Branch != "" && !slices.Contains(b.branches, r.Branch) {
					errs = append(errs, configErr(b.name, d.name, ErrUndefinedBranch, "%q", r.Branch))
				}
				e.children = append(e.children, Child{Element: id, Optional: r.Optional, Branch: r.Branch})
			}
			if d.separator != "" {
				if d.kind != KindIteration {
					errs = append(errs, configErr(b.name, d.name, ErrInvalidDefinition, "separator on %s", d.kind))
				} else if id, err := b.resolve(g, d.name, d.separator); err != nil {
					errs = append(errs, err)
				} else {
					e.separator = id
				}
			}
			if d.trailing && d.separator == "" {
				errs = append(errs, configErr(b.name, d.name, ErrInvalidDefinition, "trailing without separator"))
			}
			if d.kind == KindWrapper {
				e.optional = true
			}

		case KindChameleon:
			if d.dialect == "" {
				errs = append(errs, configErr(b.name, d.name, ErrNoEmbeddedDialect, ""))
			}
			open, ok := b.family.Lookup(d.open)
			if d.open == "" || !ok {
				errs = append(errs, configErr(b.name, d.name, ErrChameleonBoundary, "%q", d.open))
			}
			e.open = open
			if d.close != "" {
				closeTok, ok := b.family.Lookup(d.close)
				if !ok {
					errs = append(errs, configErr(b.name, d.name, ErrUnknownToken, "%q", d.close))
				}
				e.close = closeTok
			}
			sentinel := &Element{
				id:        ElementID(len(g.elements)),
				name:      d.name + "$opaque",
				kind:      KindLeaf,
				grammar:   g,
				tok:       b.family.Opaque,
				separator: NoElement,
				sentinel:  NoElement,
			}
			g.elements = append(g.elements, sentinel)
			e.sentinel = sentinel.id
		}
	}

	if root, ok := g.byName[b.root]; ok {
		g.root = root.id
	} else {
		errs = append(errs, configErr(b.name, b.root, ErrRootNotDefined, ""))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	propagateOptional(g)

	g.engine = newEngine(g)
	if err := checkFirstSets(g); err != nil {
		return nil, err
	}
	return g, nil
}

// resolve maps a reference name to an element, creating an anonymous leaf
// when the name denotes a token.
func (b *Builder) resolve(g *Grammar, owner, name string) (ElementID, error) {
	if e, ok := g.byName[name]; ok {
		return e.id, nil
	}
	t, ok := b.family.Lookup(name)
	if !ok {
		if t, ok = b.family.LookupSymbol(name); !ok {
			return NoElement, configErr(b.name, owner, ErrUnresolvedElement, "%q", name)
		}
	}
	leaf := &Element{
		id:         ElementID(len(g.elements)),
		name:       t.Name(),
		kind:       KindLeaf,
		grammar:    g,
		tok:        t,
		identifier: t.IsIdentifier(),
		separator:  NoElement,
		sentinel:   NoElement,
	}
	g.elements = append(g.elements, leaf)
	return leaf.id, nil
}

// propagateOptional marks alternations optional when one of their
// alternatives is. Iterates to a fixpoint so recursive alternations settle.
func propagateOptional(g *Grammar) {
	for changed := true; changed; {
		changed = false
		for _, e := range g.elements {
			if e.kind != KindOneOf || e.optional {
				continue
			}
			for i := range e.children {
				if e.SlotSkippable(i) {
					e.optional = true
					changed = true
					break
				}
			}
		}
	}
}

// checkFirstSets rejects elements reachable from the root through mandatory
// slots that can never match a token, which is how purely left-recursive
// rules show up.
func checkFirstSets(g *Grammar) error {
	base := g.engine.base
	visited := make([]bool, len(g.elements))
	mandatory := make([]bool, len(g.elements))
	stack := []ElementID{g.root}
	visited[g.root] = true
	mandatory[g.root] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e := g.elements[id]
		next := make([]Child, 0, len(e.children)+1)
		next = append(next, e.children...)
		if e.separator != NoElement {
			next = append(next, Child{Element: e.separator})
		}
		for _, c := range next {
			if !c.Optional {
				mandatory[c.Element] = true
			}
			if !visited[c.Element] {
				visited[c.Element] = true
				stack = append(stack, c.Element)
			}
		}
	}

	var errs []error
	for id, e := range g.elements {
		if visited[id] && mandatory[id] && base.caches[id].first.IsEmpty() {
			errs = append(errs, configErr(g.name, e.name, ErrEmptyFirstSet, ""))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MustBuild is Build for statically known grammars.
func (b *Builder) MustBuild() *Grammar {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("grammar %s: %v", b.name, err))
	}
	return g
}
