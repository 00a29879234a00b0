// Package token defines the lexical vocabulary shared by the grammar engine.
//
// Token types are interned per dialect family: a Family hands out exactly one
// *Type per canonical name and types are compared by identity. Each type
// carries a category and a dialect affinity (the languages whose lexers
// recognize it).
package token

import (
	"fmt"
	"slices"
	"strings"
)

// Category classifies a token type.
type Category uint8

// Token categories.
const (
	CategorySpecial     Category = iota // EOF, ILLEGAL
	CategoryKeyword                     // SELECT, BEGIN
	CategoryIdentifier                  // foo, "Foo"
	CategoryLiteral                     // 'text', 42
	CategoryOperator                    // +, =, ||
	CategoryPunctuation                 // , ; ( )
	CategoryWhitespace                  // comments and other whitespace-equivalent tokens
	CategoryOpaque                      // embedded-dialect boundary sentinel
)

var categoryNames = map[Category]string{
	CategorySpecial:     "special",
	CategoryKeyword:     "keyword",
	CategoryIdentifier:  "identifier",
	CategoryLiteral:     "literal",
	CategoryOperator:    "operator",
	CategoryPunctuation: "punctuation",
	CategoryWhitespace:  "whitespace",
	CategoryOpaque:      "opaque",
}

// String returns the lowercase category name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", c)
}

// ParseCategory returns the category with the given name.
func ParseCategory(name string) (Category, bool) {
	for c, n := range categoryNames {
		if strings.EqualFold(n, name) {
			return c, true
		}
	}
	return 0, false
}

// Names of the types every family pre-registers.
const (
	EOF     = "EOF"
	ILLEGAL = "ILLEGAL"
	IDENT   = "IDENT"
	NUMBER  = "NUMBER"
	STRING  = "STRING"
	OPAQUE  = "OPAQUE"
)

// Type is an interned lexical category. Two types are the same token only if
// they are the same pointer; use Equivalent for alias-aware comparison.
type Type struct {
	id        int32
	name      string
	text      string
	category  Category
	affinity  []string
	canonical *Type
	family    *Family
}

// ID returns the dense per-family index of the type.
func (t *Type) ID() int32 { return t.id }

// Name returns the canonical name (e.g. "SELECT", "COMMA").
func (t *Type) Name() string { return t.name }

// Text returns the source text of keyword and symbol types, or the name for
// classes such as IDENT.
func (t *Type) Text() string {
	if t.text != "" {
		return t.text
	}
	return t.name
}

// Category returns the category of the type.
func (t *Type) Category() Category { return t.category }

// IsIdentifier reports whether the type is an identifier class.
func (t *Type) IsIdentifier() bool { return t.category == CategoryIdentifier }

// IsWhitespace reports whether the type is whitespace-equivalent.
func (t *Type) IsWhitespace() bool { return t.category == CategoryWhitespace }

// IsKeyword reports whether the type is a keyword.
func (t *Type) IsKeyword() bool { return t.category == CategoryKeyword }

// DialectAffinity returns the languages that recognize this type.
// An empty result means every language of the family does.
func (t *Type) DialectAffinity() []string {
	return slices.Clone(t.affinity)
}

// RecognizedBy reports whether lexers of the given language produce this type.
func (t *Type) RecognizedBy(language string) bool {
	if len(t.affinity) == 0 || language == "" {
		return true
	}
	return slices.Contains(t.affinity, language)
}

// Canonical returns the type this one aliases, or the type itself.
func (t *Type) Canonical() *Type {
	if t.canonical != nil {
		return t.canonical
	}
	return t
}

// Equivalent reports whether two types denote the same token, treating
// aliases as interchangeable.
func (t *Type) Equivalent(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Canonical() == other.Canonical()
}

// Family returns the family the type was registered in.
func (t *Type) Family() *Family { return t.family }

// String returns the canonical name.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// Token is a lexical token with position information.
type Token struct {
	Type    *Type
	Literal string
	Pos     Position
	End     Position
}

// Span returns the source range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}

// IsEOF reports whether the token ends the stream.
func (t Token) IsEOF() bool {
	return t.Type == nil || t.Type.name == EOF
}
