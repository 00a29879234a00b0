// Package parser is an error-tolerant predictive parser driven by a
// dialect's grammar and lookup caches.
//
// The parser chooses alternatives, skips optional slots and continues
// iterations by consulting the first sets of the grammar; it never
// backtracks. Syntax errors are recorded with the set of tokens that were
// expected and the parser resynchronizes on the next token some open scope
// can continue with. Regions of embedded dialects are captured verbatim and
// parsed on first use.
//
// # Usage
//
//	d, _ := registry.Get("sql")
//	doc, err := parser.New(d, parser.WithRegistry(registry)).Parse(ctx, src)
//	path := doc.PathAt(offset)
package parser

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/lexer"
	"github.com/leapstack-labs/sqlgrammar/pkg/lookahead"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Parser parses documents of one dialect.
type Parser struct {
	dialect  *dialect.Dialect
	registry *dialect.Registry
	extra    []string
	logger   *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithRegistry resolves embedded dialects through reg. Without a registry
// every embedded region is opaque.
func WithRegistry(reg *dialect.Registry) Option {
	return func(p *Parser) { p.registry = reg }
}

// WithBranches activates parse branches on top of the dialect default.
func WithBranches(names ...string) Option {
	return func(p *Parser) { p.extra = append(p.extra, names...) }
}

// WithLogger sets the logger for absorbed per-parse anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// New creates a parser for d.
func New(d *dialect.Dialect, opts ...Option) *Parser {
	p := &Parser{dialect: d}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// Dialect returns the parser's dialect.
func (p *Parser) Dialect() *dialect.Dialect { return p.dialect }

// Branches returns the active parse branches.
func (p *Parser) Branches() *grammar.BranchSet {
	return p.dialect.ActiveBranches(p.extra...)
}

// Parse lexes and parses src. The only error is cancellation of ctx.
func (p *Parser) Parse(ctx context.Context, src string) (*Document, error) {
	return p.parse(ctx, src, token.Position{})
}

func (p *Parser) parse(ctx context.Context, src string, base token.Position) (*Document, error) {
	toks, comments := lexer.Tokenize(src, p.dialect.Family(), p.dialect.Language, lexer.WithBase(base))
	doc, err := p.ParseTokens(ctx, src, toks)
	if err != nil {
		return nil, err
	}
	doc.Comments = comments
	doc.base = base.Offset
	return doc, nil
}

// ParseTokens parses a token stream produced by an external lexer. src is
// the text the tokens were cut from; it supplies the content of embedded
// regions. The stream must end with an EOF token.
func (p *Parser) ParseTokens(ctx context.Context, src string, toks []token.Token) (*Document, error) {
	if len(toks) == 0 || !toks[len(toks)-1].IsEOF() {
		toks = append(toks, token.Token{Type: p.dialect.Family().EOF})
	}
	branches := p.Branches()
	view := p.dialect.Grammar().Engine().View(branches)
	doc := &Document{
		Dialect:   p.dialect,
		Source:    src,
		Tokens:    toks,
		Root:      &Node{Type: NodeDocument},
		snapshots: make([][]frame, len(toks)),
		parser:    p,
		branches:  branches,
	}
	s := &state{
		ctx:     ctx,
		p:       p,
		doc:     doc,
		view:    view,
		pred:    predictorFor(view),
		tracker: dialect.NewTracker(p.registry, p.dialect),
		active:  make(map[activeKey]struct{}),
		lastErr: -1,
	}
	s.run()
	if s.err != nil {
		return nil, s.err
	}
	doc.Events = s.tracker.Events()
	if len(doc.Errors) > 0 {
		p.logger.Debug("recovered syntax errors",
			slog.String("dialect", p.dialect.Name),
			slog.Int("errors", len(doc.Errors)),
			slog.String("first", doc.Errors[0].Error()))
	}
	return doc, nil
}

// frame is one open scope: the element and its slot (see lookahead.Path).
type frame struct {
	elem  *grammar.Element
	index int
}

type activeKey struct {
	elem grammar.ElementID
	pos  int
}

type state struct {
	ctx     context.Context
	err     error
	p       *Parser
	doc     *Document
	view    *grammar.View
	pred    *predictor
	tracker *dialect.Tracker

	pos     int
	stack   []frame
	active  map[activeKey]struct{}
	lastErr int
}

func (s *state) cur() token.Token { return s.doc.Tokens[s.pos] }

func (s *state) cancelled() bool {
	if s.err == nil {
		s.err = s.ctx.Err()
	}
	return s.err != nil
}

// consume records the scopes open after the current token and advances.
func (s *state) consume() token.Token {
	tok := s.cur()
	snap := make([]frame, len(s.stack))
	copy(snap, s.stack)
	s.doc.snapshots[s.pos] = snap
	if !tok.IsEOF() {
		s.pos++
	}
	return tok
}

// skip consumes an unexpected token; the cursor after it is where it was
// before it.
func (s *state) skip(parent *Node) {
	tok := s.cur()
	if s.pos > 0 {
		s.doc.snapshots[s.pos] = s.doc.snapshots[s.pos-1]
	}
	s.pos++
	parent.add(&Node{Type: NodeError, Token: &tok, Span: tok.Span()})
}

func (s *state) push(e *grammar.Element) *Node {
	s.stack = append(s.stack, frame{elem: e, index: -1})
	return &Node{Type: NodeComposite, Element: e}
}

func (s *state) pop() { s.stack = s.stack[:len(s.stack)-1] }

func (s *state) top() *frame { return &s.stack[len(s.stack)-1] }

func (s *state) canStart(e *grammar.Element) bool {
	return s.pred.canStart(e, s.cur())
}

func (s *state) run() {
	root := s.doc.Dialect.Root()
	for !s.cur().IsEOF() {
		if s.cancelled() {
			return
		}
		start := s.pos
		if s.canStart(root) {
			s.doc.Root.add(s.parse(root))
		}
		if s.pos > start || s.cur().IsEOF() {
			continue
		}
		s.syntaxError(s.expectedAt(s.doc.PathBefore(s.pos)))
		s.skip(s.doc.Root)
		for !s.cur().IsEOF() && !s.canStart(root) {
			s.skip(s.doc.Root)
		}
	}
	s.consume()
}

// parse parses e at the current token. Callers check canStart first.
func (s *state) parse(e *grammar.Element) *Node {
	key := activeKey{elem: e.ID(), pos: s.pos}
	if _, busy := s.active[key]; busy {
		// e is already being parsed at this token: left recursion.
		s.p.logger.Debug("left recursion cut", slog.String("element", e.Name()), slog.Int("token", s.pos))
		return nil
	}
	s.active[key] = struct{}{}
	defer delete(s.active, key)

	if s.cancelled() {
		return nil
	}
	switch e.Kind() {
	case grammar.KindLeaf:
		return s.parseLeaf(e)
	case grammar.KindSequence:
		return s.parseSequence(e)
	case grammar.KindOneOf:
		return s.parseOneOf(e)
	case grammar.KindIteration:
		return s.parseIteration(e)
	case grammar.KindWrapper:
		return s.parseWrapper(e)
	case grammar.KindChameleon:
		return s.parseChameleon(e)
	}
	return nil
}

func (s *state) parseLeaf(e *grammar.Element) *Node {
	if !e.TokenType().Equivalent(s.cur().Type) {
		return nil
	}
	tok := s.consume()
	return &Node{Type: NodeToken, Element: e, Token: &tok, Span: tok.Span()}
}

func (s *state) parseSequence(e *grammar.Element) *Node {
	node := s.push(e)
	defer s.pop()
	start := s.pos
	for i := range e.Children() {
		if !s.view.SlotActive(e, i) {
			continue
		}
		child := e.Child(i)
		s.top().index = i
		if s.canStart(child) {
			if n := s.parse(child); n != nil {
				node.add(n)
				continue
			}
		}
		if e.SlotSkippable(i) {
			continue
		}
		if s.pos == start {
			// Nothing matched yet; let the caller try another alternative.
			return nil
		}
		if n := s.recover(node, i, child); n != nil {
			node.add(n)
		}
	}
	return node
}

func (s *state) parseOneOf(e *grammar.Element) *Node {
	node := s.push(e)
	defer s.pop()
	for i, c := range e.ChildElements() {
		if !s.view.SlotActive(e, i) || !s.canStart(c) {
			continue
		}
		s.top().index = i
		if n := s.parse(c); n != nil {
			node.add(n)
			return node
		}
	}
	return nil
}

func (s *state) parseIteration(e *grammar.Element) *Node {
	node := s.push(e)
	defer s.pop()
	item, sep := e.Child(0), e.Separator()

	s.top().index = lookahead.IterationElement
	if n := s.parse(item); n != nil {
		node.add(n)
	} else {
		return nil
	}
	for !s.cur().IsEOF() {
		start := s.pos
		if sep != nil {
			if !s.canStart(sep) {
				break
			}
			s.top().index = lookahead.IterationSeparator
			node.add(s.parse(sep))
			s.top().index = lookahead.IterationElement
			if s.canStart(item) {
				node.add(s.parse(item))
			} else if e.TrailingSeparator() {
				break
			} else if n := s.recover(node, lookahead.IterationElement, item); n != nil {
				node.add(n)
			}
		} else {
			if !s.canStart(item) {
				break
			}
			node.add(s.parse(item))
		}
		if s.pos == start {
			break
		}
	}
	return node
}

func (s *state) parseWrapper(e *grammar.Element) *Node {
	node := s.push(e)
	defer s.pop()
	s.top().index = 0
	child := e.Child(0)
	if s.canStart(child) {
		node.add(s.parse(child))
	}
	return node
}

func (s *state) parseChameleon(e *grammar.Element) *Node {
	open, closeTok := e.Boundaries()
	if !open.Equivalent(s.cur().Type) {
		return nil
	}
	node := &Node{Type: NodeRegion, Element: e}
	openTok := s.consume()
	node.add(&Node{Type: NodeToken, Token: &openTok, Span: openTok.Span()})
	s.transition(s.tracker.Open(e, openTok.Pos))
	s.transition(s.tracker.Enter(openTok.End))

	region := &Region{
		ID:        s.tracker.Region(),
		Chameleon: e,
		Embedding: s.tracker.Embedding(),
		Open:      openTok,
		parser:    s.p,
	}
	first := s.pos
	for !s.cur().IsEOF() && (closeTok == nil || !closeTok.Equivalent(s.cur().Type)) {
		s.doc.snapshots[s.pos] = s.doc.snapshots[first-1]
		s.pos++
	}
	end := s.cur()
	region.Tokens = s.doc.Tokens[first:s.pos]
	region.Span = token.Span{Start: openTok.End, End: end.Pos}
	region.Source = s.doc.slice(openTok.End.Offset, end.Pos.Offset)

	s.transition(s.tracker.Close(end.Pos))
	switch {
	case closeTok == nil:
		s.transition(s.tracker.Exit(end.Pos))
	case end.IsEOF():
		region.Unterminated = true
		s.syntaxError([]string{closeTok.Text()})
		s.transition(s.tracker.Exit(end.Pos))
	default:
		closing := s.consume()
		region.Close = closing
		s.transition(s.tracker.Exit(closing.End))
	}

	node.Region = region
	s.doc.Regions = append(s.doc.Regions, region)
	if region.Opaque() {
		s.p.logger.Debug("opaque region",
			slog.String("element", e.Name()),
			slog.String("embedded", e.EmbeddedDialect()),
			slog.Int("offset", region.Span.Start.Offset))
	}
	if region.Close.Type != nil {
		node.add(&Node{Type: NodeToken, Token: &region.Close, Span: region.Close.Span()})
	} else {
		node.Span.End = end.Pos
	}
	return node
}

func (s *state) transition(_ dialect.Event, err error) {
	if err != nil {
		s.p.logger.Debug("chameleon transition", slog.Any("error", err))
	}
}

// recover handles a mandatory slot that cannot start at the current token.
// It records one error per position and skips tokens until the slot can
// start or some open scope can continue. It returns the slot's node when
// parsing could resume inside it.
func (s *state) recover(node *Node, slot int, child *grammar.Element) *Node {
	s.syntaxError(s.expectedAt(s.doc.PathBefore(s.pos)))

	follow := s.follow(slot)
	for !s.cur().IsEOF() && !s.canStart(child) && !s.inFollow(follow) {
		s.skip(node)
	}
	if s.canStart(child) && !s.cur().IsEOF() {
		return s.parse(child)
	}
	return nil
}

func (s *state) expectedAt(path *lookahead.Path) []string {
	res := s.doc.Dialect.Resolver().Resolve(path, s.doc.branches)
	return Labels(s.doc.Dialect.Grammar(), res.Leafs)
}

func (s *state) syntaxError(expected []string) {
	if s.lastErr == s.pos {
		return
	}
	s.lastErr = s.pos
	tok := s.cur()
	s.doc.Errors = append(s.doc.Errors, &SyntaxError{Pos: tok.Pos, Found: tok, Expected: expected})
}

// follow collects the elements any open scope could continue with after
// the innermost scope's slot.
func (s *state) follow(slot int) []*grammar.Element {
	var out []*grammar.Element
	for i := len(s.stack) - 1; i >= 0; i-- {
		f := s.stack[i]
		from := f.index + 1
		if i == len(s.stack)-1 {
			from = slot + 1
		}
		switch f.elem.Kind() {
		case grammar.KindSequence:
			for j := from; j < len(f.elem.Children()); j++ {
				if s.view.SlotActive(f.elem, j) {
					out = append(out, f.elem.Child(j))
				}
			}
		case grammar.KindIteration:
			if sep := f.elem.Separator(); sep != nil {
				out = append(out, sep)
			} else {
				out = append(out, f.elem.Child(0))
			}
		}
	}
	return out
}

func (s *state) inFollow(follow []*grammar.Element) bool {
	for _, e := range follow {
		if s.canStart(e) {
			return true
		}
	}
	return false
}
