// Package complete turns the leafs that may follow a cursor into completion
// items. Inside an embedded region completion is delegated to the embedded
// dialect.
package complete

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/parser"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Kind classifies completion items.
type Kind uint8

// Item kinds.
const (
	KindKeyword Kind = iota
	KindOperator
	KindPunctuation
	KindIdentifier
	KindLiteral
	KindEmbedded
)

var kindNames = [...]string{
	KindKeyword:     "keyword",
	KindOperator:    "operator",
	KindPunctuation: "punctuation",
	KindIdentifier:  "identifier",
	KindLiteral:     "literal",
	KindEmbedded:    "embedded",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown completion kind %q", text)
}

// Item is one completion candidate.
type Item struct {
	Label  string `json:"label"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail,omitempty"`

	leaf *grammar.Element
}

// Leaf returns the grammar leaf the item was made from.
func (i Item) Leaf() *grammar.Element { return i.leaf }

// Placeholder reports whether the label stands for a class of tokens
// rather than text to insert.
func (i Item) Placeholder() bool {
	l := i.Label
	return len(l) > 2 && l[0] == '<' && l[len(l)-1] == '>'
}

// Result is the outcome of a completion request.
type Result struct {
	Dialect    string     `json:"dialect"`
	Prefix     string     `json:"prefix,omitempty"`
	Replace    token.Span `json:"-"`
	Items      []Item     `json:"items"`
	EndAllowed bool       `json:"end_allowed"`
	Truncated  bool       `json:"truncated,omitempty"`
	Opaque     bool       `json:"opaque,omitempty"`
}

// Labels returns the item labels in order.
func (r *Result) Labels() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Label
	}
	return out
}

// Completer computes completions for documents of any registered dialect.
type Completer struct {
	registry *dialect.Registry
	logger   *slog.Logger
}

// Option configures a Completer.
type Option func(*Completer)

// WithLogger sets the completer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Completer) { c.logger = logger }
}

// New creates a completer. Embedded dialects are resolved through reg; a nil
// registry makes every embedded region opaque.
func New(reg *dialect.Registry, opts ...Option) *Completer {
	c := &Completer{registry: reg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Complete parses src with d and completes at offset. branches are activated
// on top of the dialect default.
func (c *Completer) Complete(ctx context.Context, d *dialect.Dialect, src string, offset int, branches ...string) (*Result, error) {
	p := parser.New(d, parser.WithRegistry(c.registry), parser.WithBranches(branches...), parser.WithLogger(c.logger))
	doc, err := p.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	return c.CompleteDocument(ctx, doc, offset)
}

// CompleteDocument completes at offset inside a parsed document.
func (c *Completer) CompleteDocument(ctx context.Context, doc *parser.Document, offset int) (*Result, error) {
	if r, ok := doc.RegionAt(offset); ok {
		if r.Opaque() {
			c.logger.Debug("completion in opaque region",
				slog.String("dialect", doc.Dialect.Name),
				slog.String("element", r.Chameleon.Name()))
			return &Result{Dialect: doc.Dialect.Name, Opaque: true}, nil
		}
		sub, err := r.Document(ctx)
		if err != nil {
			return nil, err
		}
		return c.CompleteDocument(ctx, sub, offset)
	}

	res := &Result{Dialect: doc.Dialect.Name}
	i := doc.TokenIndexAt(offset)
	if w, ok := wordAt(doc, offset); ok {
		tok := doc.Tokens[w]
		res.Prefix = tok.Literal[:offset-tok.Pos.Offset]
		res.Replace = tok.Span()
		i = w
	}

	resolved := doc.Dialect.Resolver().Resolve(doc.PathBefore(i), doc.Branches())
	res.EndAllowed = resolved.EndAllowed
	res.Truncated = resolved.Truncated
	res.Items = Filter(Items(doc.Dialect.Grammar(), resolved.Leafs), res.Prefix)
	return res, nil
}

// wordAt returns the index of the keyword or identifier token the cursor is
// inside or directly after.
func wordAt(doc *parser.Document, offset int) (int, bool) {
	for i, tok := range doc.Tokens {
		if tok.IsEOF() || tok.Pos.Offset >= offset {
			break
		}
		if offset > tok.End.Offset {
			continue
		}
		if (tok.Type.IsKeyword() || tok.Type.IsIdentifier()) && offset-tok.Pos.Offset <= len(tok.Literal) {
			return i, true
		}
	}
	return 0, false
}

// Items converts a leaf set into sorted items. Leafs that are the same as
// an earlier one, such as aliased keywords, are dropped.
func Items(g *grammar.Grammar, leafs grammar.LeafSet) []Item {
	var items []Item
	seen := make(map[string]struct{})
	for _, leaf := range leafs.Elements(g) {
		if slices.ContainsFunc(items, func(it Item) bool { return it.leaf.IsSameAs(leaf) }) {
			continue
		}
		it := item(leaf)
		if _, ok := seen[it.Label]; ok {
			continue
		}
		seen[it.Label] = struct{}{}
		items = append(items, it)
	}
	sort.SliceStable(items, func(a, b int) bool {
		pa, pb := items[a].Placeholder(), items[b].Placeholder()
		if pa != pb {
			return !pa
		}
		return items[a].Label < items[b].Label
	})
	return items
}

func item(leaf *grammar.Element) Item {
	it := Item{Label: parser.Label(leaf), leaf: leaf}
	t := leaf.TokenType()
	switch t.Category() {
	case token.CategoryKeyword:
		it.Kind = KindKeyword
	case token.CategoryOperator:
		it.Kind = KindOperator
	case token.CategoryPunctuation:
		it.Kind = KindPunctuation
	case token.CategoryIdentifier:
		it.Kind = KindIdentifier
		it.Detail = "identifier"
	case token.CategoryOpaque:
		it.Kind = KindEmbedded
		for _, c := range leaf.Grammar().Chameleons() {
			if c.Sentinel() == leaf {
				it.Detail = c.EmbeddedDialect()
			}
		}
	default:
		it.Kind = KindLiteral
		it.Detail = strings.ToLower(t.Name())
	}
	return it
}

// Filter keeps the items whose label starts with prefix, ignoring case.
// Placeholders match any prefix.
func Filter(items []Item, prefix string) []Item {
	if prefix == "" {
		return items
	}
	upper := strings.ToUpper(prefix)
	out := items[:0:0]
	for _, it := range items {
		if it.Placeholder() || strings.HasPrefix(strings.ToUpper(it.Label), upper) {
			out = append(out, it)
		}
	}
	return out
}
