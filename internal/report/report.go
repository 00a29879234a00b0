// Package report converts parse, completion and highlight results into the
// JSON documents shared by the CLI and the HTTP API.
package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/highlight"
	"github.com/leapstack-labs/sqlgrammar/pkg/parser"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// DialectInfo describes a registered dialect.
type DialectInfo struct {
	Name        string   `json:"name"`
	Language    string   `json:"language"`
	Vendor      string   `json:"vendor,omitempty"`
	Description string   `json:"description,omitempty"`
	Branches    []string `json:"branches"`
	AllBranches bool     `json:"all_branches,omitempty"`
	Embeds      string   `json:"embeds,omitempty"`
	Elements    int      `json:"elements"`
}

// Position is a source location.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Range is a source span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one syntax error.
type Diagnostic struct {
	Position Position `json:"position"`
	Found    string   `json:"found"`
	Expected []string `json:"expected"`
	Message  string   `json:"message"`
}

// RegionInfo describes an embedded region.
type RegionInfo struct {
	ID           string       `json:"id"`
	Chameleon    string       `json:"chameleon"`
	Dialect      string       `json:"dialect,omitempty"`
	Opaque       bool         `json:"opaque"`
	Unterminated bool         `json:"unterminated,omitempty"`
	Range        Range        `json:"range"`
	Errors       []Diagnostic `json:"errors,omitempty"`
	Tree         *TreeNode    `json:"tree,omitempty"`
}

// TreeNode is a parse tree node.
type TreeNode struct {
	Kind     string      `json:"kind"`
	Element  string      `json:"element,omitempty"`
	Text     string      `json:"text,omitempty"`
	Range    Range       `json:"range"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Parse is the report of one parsed document.
type Parse struct {
	Dialect  string       `json:"dialect"`
	Branches []string     `json:"branches"`
	Valid    bool         `json:"valid"`
	Errors   []Diagnostic `json:"errors"`
	Regions  []RegionInfo `json:"regions,omitempty"`
	Tree     *TreeNode    `json:"tree,omitempty"`
}

// Span is one highlighted stretch of source.
type Span struct {
	Range     Range  `json:"range"`
	Text      string `json:"text"`
	Attribute string `json:"attribute"`
	Dialect   string `json:"dialect"`
	Region    string `json:"region,omitempty"`
}

// Dialects describes every dialect of reg, ordered by name.
func Dialects(reg *dialect.Registry) []DialectInfo {
	out := make([]DialectInfo, 0)
	for _, d := range reg.Dialects() {
		out = append(out, Dialect(d))
	}
	return out
}

// Dialect describes d.
func Dialect(d *dialect.Dialect) DialectInfo {
	info := DialectInfo{
		Name:        d.Name,
		Language:    d.Language,
		Vendor:      d.Vendor,
		Description: d.Description,
		Branches:    d.Branches().Names(),
		AllBranches: d.Branches() == nil,
		Embeds:      d.Embedded,
		Elements:    d.Grammar().Len(),
	}
	if info.Branches == nil {
		info.Branches = []string{}
	}
	return info
}

// Document reports doc. With tree set, the parse trees of the document and
// of its mapped regions are included.
func Document(ctx context.Context, doc *parser.Document, tree bool) (*Parse, error) {
	out := &Parse{
		Dialect:  doc.Dialect.Name,
		Branches: doc.Branches().Names(),
		Errors:   Diagnostics(doc.Errors),
	}
	if out.Branches == nil {
		out.Branches = []string{}
	}
	valid := !doc.HasErrors()
	for _, r := range doc.Regions {
		info := RegionInfo{
			ID:           r.ID.String(),
			Chameleon:    r.Chameleon.Name(),
			Opaque:       r.Opaque(),
			Unterminated: r.Unterminated,
			Range:        NewRange(r.Span),
		}
		if d := r.Dialect(); d != nil {
			info.Dialect = d.Name
			sub, err := r.Document(ctx)
			if err != nil {
				return nil, err
			}
			info.Errors = Diagnostics(sub.Errors)
			valid = valid && !sub.HasErrors()
			if tree {
				info.Tree = Tree(sub.Root)
			}
		}
		out.Regions = append(out.Regions, info)
	}
	out.Valid = valid
	if tree {
		out.Tree = Tree(doc.Root)
	}
	return out, nil
}

// Diagnostics converts syntax errors.
func Diagnostics(errs []*parser.SyntaxError) []Diagnostic {
	out := make([]Diagnostic, 0, len(errs))
	for _, e := range errs {
		found := e.Found.Literal
		if e.Found.IsEOF() {
			found = ""
		}
		expected := e.Expected
		if expected == nil {
			expected = []string{}
		}
		out = append(out, Diagnostic{
			Position: NewPosition(e.Pos),
			Found:    found,
			Expected: expected,
			Message:  e.Error(),
		})
	}
	return out
}

// Tree converts a parse tree.
func Tree(n *parser.Node) *TreeNode {
	if n == nil {
		return nil
	}
	out := &TreeNode{Kind: n.Type.String(), Range: NewRange(n.Span)}
	if n.Element != nil {
		out.Element = n.Element.Name()
	}
	if n.Token != nil {
		out.Text = n.Token.Literal
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, Tree(c))
	}
	return out
}

// Spans converts highlight spans.
func Spans(spans []highlight.Span) []Span {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		sp := Span{Range: NewRange(s.Span), Text: s.Text, Attribute: s.Attribute, Dialect: s.Dialect}
		if s.Region != uuid.Nil {
			sp.Region = s.Region.String()
		}
		out = append(out, sp)
	}
	return out
}

// NewPosition converts a token position.
func NewPosition(p token.Position) Position {
	return Position{Line: p.Line, Column: p.Column, Offset: p.Offset}
}

// NewRange converts a token span.
func NewRange(s token.Span) Range {
	return Range{Start: NewPosition(s.Start), End: NewPosition(s.End)}
}
