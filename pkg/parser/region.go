package parser

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Region is the content of one chameleon in a host document.
type Region struct {
	ID        uuid.UUID
	Chameleon *grammar.Element
	Embedding *dialect.Embedding // nil when no embedded dialect is mapped
	Open      token.Token
	Close     token.Token   // zero when the region runs to end of input
	Tokens    []token.Token // host tokens inside the region
	Span      token.Span    // content between the boundaries
	Source    string
	// Unterminated is set when input ended before the closing boundary.
	Unterminated bool

	parser *Parser
	mu     sync.Mutex
	doc    *Document
}

// Opaque reports whether the region's content is not parsed.
func (r *Region) Opaque() bool { return r.Embedding == nil }

// Dialect returns the embedded dialect, or nil for an opaque region.
func (r *Region) Dialect() *dialect.Dialect {
	if r.Embedding == nil {
		return nil
	}
	return r.Embedding.Embedded
}

// Document parses the region's content with the embedded dialect on first
// use. Positions in the returned document are those of the host source.
// Opaque regions return nil.
func (r *Region) Document(ctx context.Context) (*Document, error) {
	if r.Opaque() {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc != nil {
		return r.doc, nil
	}
	var opts []Option
	if r.parser != nil {
		opts = append(opts, WithRegistry(r.parser.registry), WithLogger(r.parser.logger))
	}
	doc, err := New(r.Embedding.Embedded, opts...).parse(ctx, r.Source, r.Span.Start)
	if err != nil {
		return nil, err
	}
	r.doc = doc
	return doc, nil
}

// Tree returns the parse tree of the region's content, or nil for an opaque
// region.
func (r *Region) Tree(ctx context.Context) (Tree, error) {
	doc, err := r.Document(ctx)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Root, nil
}
