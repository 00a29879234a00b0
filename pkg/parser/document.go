package parser

import (
	"sort"

	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/lookahead"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Document is the result of parsing one source text.
type Document struct {
	Dialect  *dialect.Dialect
	Source   string
	Tokens   []token.Token // ends with EOF
	Comments []*token.Comment
	Root     *Node
	Errors   []*SyntaxError
	Regions  []*Region
	Events   []dialect.Event

	base      int
	snapshots [][]frame // open scopes after each token
	parser    *Parser
	branches  *grammar.BranchSet
}

// Tree returns the root of the parse tree.
func (d *Document) Tree() Tree { return d.Root }

// Branches returns the parse branches the document was parsed with.
func (d *Document) Branches() *grammar.BranchSet { return d.branches }

// Registry returns the registry embedded dialects were resolved through,
// or nil.
func (d *Document) Registry() *dialect.Registry {
	if d.parser == nil {
		return nil
	}
	return d.parser.registry
}

// HasErrors reports whether any syntax error was recorded.
func (d *Document) HasErrors() bool { return len(d.Errors) > 0 }

// TokenIndexAt returns the number of tokens ending at or before offset.
func (d *Document) TokenIndexAt(offset int) int {
	n := len(d.Tokens) - 1
	return sort.Search(n, func(i int) bool { return d.Tokens[i].End.Offset > offset })
}

// PathAt returns the lookahead path for a cursor at offset: the open scopes
// after the last token that ends at or before it.
func (d *Document) PathAt(offset int) *lookahead.Path {
	return d.PathBefore(d.TokenIndexAt(offset))
}

// PathBefore returns the lookahead path for a cursor in front of token i.
func (d *Document) PathBefore(i int) *lookahead.Path {
	var snap []frame
	if i > 0 && i-1 < len(d.snapshots) {
		snap = d.snapshots[i-1]
	}
	if len(snap) == 0 {
		return lookahead.NewPath(d.Dialect.Root())
	}
	var p *lookahead.Path
	for _, f := range snap {
		p = &lookahead.Path{Element: f.elem, Index: f.index, Parent: p}
	}
	return p
}

// NextLeafs resolves the leafs that may follow a cursor at offset.
func (d *Document) NextLeafs(offset int) lookahead.Result {
	return d.Dialect.Resolver().Resolve(d.PathAt(offset), d.branches)
}

// RegionAt returns the embedded region whose content touches offset.
func (d *Document) RegionAt(offset int) (*Region, bool) {
	for _, r := range d.Regions {
		if r.Span.Touches(offset) {
			return r, true
		}
	}
	return nil, false
}

func (d *Document) slice(start, end int) string {
	start -= d.base
	end -= d.base
	if start < 0 || end > len(d.Source) || start > end {
		return ""
	}
	return d.Source[start:end]
}
