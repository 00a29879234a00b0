// Package dialect maps dialect names to grammars and resolves the regions
// where one dialect embeds another.
//
// A dialect is a language grammar specialized by a vendor: every vendor
// dialect of a language shares the language's grammar and lookup caches and
// only contributes the parse branches that are active by default. Dialects
// live in an explicitly constructed Registry.
package dialect

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/lookahead"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// ErrUnknownDialect is returned when a dialect name is not registered.
var ErrUnknownDialect = errors.New("unknown dialect")

// ErrDialectExists is returned when a dialect name is registered twice.
var ErrDialectExists = errors.New("dialect already registered")

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

// Highlighter assigns a style attribute to a token of the dialect.
type Highlighter interface {
	Attribute(tok token.Token) string
}

// Dialect is a registered grammar root with its default parse branches.
type Dialect struct {
	Name        string
	Language    string
	Vendor      string
	Description string

	// Embedded names the dialect this one declares for its chameleon
	// regions. Empty means regions resolve by language.
	Embedded string

	// Highlighter styles host tokens; nil leaves styling to the caller.
	Highlighter Highlighter

	grammar  *grammar.Grammar
	branches *grammar.BranchSet
	resolver *lookahead.Resolver
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	d    *Dialect
	errs []error
}

// NewDialect starts a dialect over g. The dialect's language is the
// grammar's language.
func NewDialect(name string, g *grammar.Grammar) *Builder {
	b := &Builder{d: &Dialect{Name: strings.ToLower(name), grammar: g, branches: grammar.NewBranchSet()}}
	if name == "" {
		b.errs = append(b.errs, ErrDialectRequired)
	}
	if g == nil {
		b.errs = append(b.errs, fmt.Errorf("dialect %s: no grammar", name))
	} else {
		b.d.Language = g.Language()
	}
	return b
}

// Vendor sets the vendor the dialect specializes the language for.
func (b *Builder) Vendor(vendor string) *Builder {
	b.d.Vendor = strings.ToLower(vendor)
	return b
}

// Description sets a human readable description.
func (b *Builder) Description(text string) *Builder {
	b.d.Description = text
	return b
}

// Branches sets the parse branches active by default. Names the grammar
// does not declare are rejected.
func (b *Builder) Branches(names ...string) *Builder {
	if b.d.grammar != nil {
		declared := b.d.grammar.Branches()
		for _, n := range names {
			if !slices.Contains(declared, n) {
				b.errs = append(b.errs, &grammar.ConfigError{
					Grammar: b.d.grammar.Name(), Kind: grammar.ErrUndefinedBranch,
					Detail: fmt.Sprintf("dialect %s preset %q", b.d.Name, n),
				})
			}
		}
	}
	b.d.branches = grammar.NewBranchSet(names...)
	return b
}

// AllBranches makes every branch active by default.
func (b *Builder) AllBranches() *Builder {
	b.d.branches = nil
	return b
}

// Embeds declares the dialect used for chameleon regions.
func (b *Builder) Embeds(name string) *Builder {
	b.d.Embedded = strings.ToLower(name)
	return b
}

// WithHighlighter sets the highlighter of host tokens.
func (b *Builder) WithHighlighter(h Highlighter) *Builder {
	b.d.Highlighter = h
	return b
}

// Build returns the dialect.
func (b *Builder) Build() (*Dialect, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	b.d.resolver = lookahead.NewResolver(b.d.grammar)
	return b.d, nil
}

// MustBuild is Build for statically known dialects.
func (b *Builder) MustBuild() *Dialect {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// Grammar returns the grammar of the dialect.
func (d *Dialect) Grammar() *grammar.Grammar { return d.grammar }

// Family returns the token family of the dialect.
func (d *Dialect) Family() *token.Family { return d.grammar.Family() }

// Root returns the grammar root.
func (d *Dialect) Root() *grammar.Element { return d.grammar.Root() }

// Resolver returns the next-leaf resolver of the dialect's grammar.
func (d *Dialect) Resolver() *lookahead.Resolver { return d.resolver }

// Branches returns the default parse branches (nil: unfiltered).
func (d *Dialect) Branches() *grammar.BranchSet { return d.branches }

// ActiveBranches merges query-time branches into the dialect default.
func (d *Dialect) ActiveBranches(extra ...string) *grammar.BranchSet {
	if len(extra) == 0 {
		return d.branches
	}
	return d.branches.Union(grammar.NewBranchSet(extra...))
}

// View returns the lookup caches under the default branches.
func (d *Dialect) View() *grammar.View {
	return d.grammar.Engine().View(d.branches)
}

// NextLeafs resolves the next leafs at path under the dialect's default
// branches merged with extra.
func (d *Dialect) NextLeafs(path *lookahead.Path, extra ...string) lookahead.Result {
	return d.resolver.Resolve(path, d.ActiveBranches(extra...))
}

func (d *Dialect) String() string { return d.Name }
