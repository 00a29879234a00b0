package parser

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// predictor answers "can element e start with this token" for one view. A
// chameleon starts with its opening boundary, so sentinel leafs are mapped
// back to that token.
type predictor struct {
	view   *grammar.View
	start  []grammar.LeafSet // canonical token IDs per element
	owners map[grammar.ElementID]*grammar.Element
}

type predictorKey struct{}

func predictorFor(v *grammar.View) *predictor {
	return v.Derived(predictorKey{}, func(v *grammar.View) any {
		return newPredictor(v)
	}).(*predictor)
}

func newPredictor(v *grammar.View) *predictor {
	g := v.Grammar()
	p := &predictor{
		view:   v,
		start:  make([]grammar.LeafSet, g.Len()),
		owners: sentinelOwners(g),
	}
	for _, e := range g.Elements() {
		var set grammar.LeafSet
		v.Cache(e.ID()).FirstPossibleLeafs().Each(func(id grammar.ElementID) {
			if t := p.leafToken(g.Element(id)); t != nil {
				set.Add(grammar.ElementID(t.Canonical().ID()))
			}
		})
		p.start[e.ID()] = set
	}
	return p
}

func sentinelOwners(g *grammar.Grammar) map[grammar.ElementID]*grammar.Element {
	owners := make(map[grammar.ElementID]*grammar.Element)
	for _, c := range g.Chameleons() {
		owners[c.Sentinel().ID()] = c
	}
	return owners
}

// leafToken returns the token a leaf is matched by.
func (p *predictor) leafToken(leaf *grammar.Element) *token.Type {
	if owner, ok := p.owners[leaf.ID()]; ok {
		open, _ := owner.Boundaries()
		return open
	}
	return leaf.TokenType()
}

func (p *predictor) canStart(e *grammar.Element, tok token.Token) bool {
	return tok.Type != nil && p.start[e.ID()].Contains(grammar.ElementID(tok.Type.Canonical().ID()))
}

// Label renders a leaf the way a user would type it: keyword and symbol
// text, the opening boundary of a chameleon, or a <placeholder> for
// identifier and literal classes.
func Label(leaf *grammar.Element) string {
	t := leaf.TokenType()
	if t == nil {
		return leaf.Name()
	}
	if t.Category() == token.CategoryOpaque {
		for _, c := range leaf.Grammar().Chameleons() {
			if c.Sentinel() == leaf {
				if open, _ := c.Boundaries(); open != nil {
					return open.Text()
				}
			}
		}
		return "<" + leaf.Name() + ">"
	}
	switch t.Category() {
	case token.CategoryKeyword, token.CategoryOperator, token.CategoryPunctuation:
		return t.Text()
	}
	return "<" + strings.ToLower(leaf.Name()) + ">"
}

// Labels renders a leaf set as sorted, de-duplicated labels.
func Labels(g *grammar.Grammar, leafs grammar.LeafSet) []string {
	seen := make(map[string]struct{})
	var out []string
	leafs.Each(func(id grammar.ElementID) {
		l := Label(g.Element(id))
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	})
	sort.Strings(out)
	return out
}
