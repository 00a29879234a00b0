// Package highlight assigns style attributes to the tokens of a parsed
// document. Inside an embedded region the embedded dialect's highlighter
// takes over; opaque regions keep the host's.
package highlight

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/parser"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Attributes assigned by the category highlighter.
const (
	AttrKeyword     = "keyword"
	AttrIdentifier  = "identifier"
	AttrLiteral     = "literal"
	AttrOperator    = "operator"
	AttrPunctuation = "punctuation"
	AttrComment     = "comment"
	AttrEmbedded    = "embedded"
	AttrError       = "error"
)

// CategoryHighlighter maps a token to an attribute by its category.
// Prefix, when set, is prepended as "prefix.attribute".
type CategoryHighlighter struct {
	Prefix string
}

var _ dialect.Highlighter = CategoryHighlighter{}

// Default is the highlighter used when a dialect has none.
var Default = CategoryHighlighter{}

// Attribute implements dialect.Highlighter.
func (h CategoryHighlighter) Attribute(tok token.Token) string {
	if tok.Type == nil {
		return ""
	}
	var attr string
	switch tok.Type.Category() {
	case token.CategoryKeyword:
		attr = AttrKeyword
	case token.CategoryIdentifier:
		attr = AttrIdentifier
	case token.CategoryLiteral:
		attr = AttrLiteral
	case token.CategoryOperator:
		attr = AttrOperator
	case token.CategoryPunctuation:
		attr = AttrPunctuation
	case token.CategoryWhitespace:
		attr = AttrComment
	case token.CategoryOpaque:
		attr = AttrEmbedded
	default:
		if tok.Type == tok.Type.Family().Illegal {
			attr = AttrError
		}
	}
	if attr == "" || h.Prefix == "" {
		return attr
	}
	return h.Prefix + "." + attr
}

// Span is one highlighted stretch of source.
type Span struct {
	token.Span
	Text      string
	Attribute string
	Dialect   string
	Region    uuid.UUID // zero outside embedded regions
}

// Spans highlights doc. Comments are included; spans are ordered by offset.
func Spans(ctx context.Context, doc *parser.Document) ([]Span, error) {
	out, err := spans(ctx, doc, doc.Dialect.Highlighter, uuid.Nil)
	if err != nil {
		return nil, err
	}
	for _, c := range doc.Comments {
		sp := Span{Span: c.Span, Text: c.Text, Attribute: AttrComment, Dialect: doc.Dialect.Name}
		if r, ok := doc.RegionAt(c.Span.Start.Offset); ok {
			sp.Region = r.ID
			if d := r.Dialect(); d != nil {
				sp.Dialect = d.Name
			}
		}
		out = append(out, sp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Offset < out[j].Start.Offset })
	return out, nil
}

func spans(ctx context.Context, doc *parser.Document, h dialect.Highlighter, region uuid.UUID) ([]Span, error) {
	regions := make(map[int]*parser.Region, len(doc.Regions))
	for _, r := range doc.Regions {
		regions[r.Open.Pos.Offset] = r
	}
	tracker := dialect.NewTracker(doc.Registry(), doc.Dialect)

	var out []Span
	emit := func(tok token.Token, h dialect.Highlighter, d string, region uuid.UUID) {
		out = append(out, Span{Span: tok.Span(), Text: tok.Literal, Attribute: attribute(h, tok), Dialect: d, Region: region})
	}

	for i := 0; i < len(doc.Tokens); i++ {
		tok := doc.Tokens[i]
		if tok.IsEOF() {
			break
		}
		r, ok := regions[tok.Pos.Offset]
		if !ok {
			emit(tok, h, doc.Dialect.Name, region)
			continue
		}

		emit(tok, h, doc.Dialect.Name, region)
		if _, err := tracker.Open(r.Chameleon, tok.Pos); err != nil {
			return nil, err
		}
		if _, err := tracker.Enter(tok.End); err != nil {
			return nil, err
		}
		inner := tracker.Highlighter()
		if inner == nil {
			inner = h
		}
		if r.Opaque() {
			for _, t := range r.Tokens {
				emit(t, inner, doc.Dialect.Name, r.ID)
			}
		} else {
			sub, err := r.Document(ctx)
			if err != nil {
				return nil, err
			}
			nested, err := spans(ctx, sub, inner, r.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
		i += len(r.Tokens)

		if _, err := tracker.Close(r.Span.End); err != nil {
			return nil, err
		}
		if r.Close.Type != nil {
			i++
			emit(r.Close, h, doc.Dialect.Name, region)
		}
		if _, err := tracker.Exit(r.Span.End); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func attribute(h dialect.Highlighter, tok token.Token) string {
	if h == nil {
		h = Default
	}
	return h.Attribute(tok)
}
