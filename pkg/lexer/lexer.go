// Package lexer turns source text into the typed token stream the grammar
// engine consumes. Keyword recognition follows token affinity: a word is a
// keyword only in the languages its type is registered for.
package lexer

import (
	"sort"
	"strings"
	"unicode"

	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

type symbol struct {
	text string
	typ  *token.Type
}

// Lexer tokenizes input for one language of a token family.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	family   *token.Family
	language string
	symbols  []symbol // longest first
	base     token.Position

	// Comments collected during lexing.
	Comments []*token.Comment
}

// Option configures a Lexer.
type Option func(*Lexer)

// WithBase reports positions relative to base, for fragments cut out of a
// larger document.
func WithBase(base token.Position) Option {
	return func(l *Lexer) { l.base = base }
}

// New creates a Lexer for input.
func New(input string, family *token.Family, language string, opts ...Option) *Lexer {
	l := &Lexer{
		input:    input,
		line:     1,
		col:      0,
		family:   family,
		language: strings.ToLower(language),
	}
	for _, opt := range opts {
		opt(l)
	}
	for text, typ := range family.Symbols() {
		if typ.RecognizedBy(l.language) {
			l.symbols = append(l.symbols, symbol{text: text, typ: typ})
		}
	}
	sort.Slice(l.symbols, func(i, j int) bool {
		if len(l.symbols[i].text) != len(l.symbols[j].text) {
			return len(l.symbols[i].text) > len(l.symbols[j].text)
		}
		return l.symbols[i].text < l.symbols[j].text
	})
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	p := token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: min(l.pos, len(l.input)),
	}
	return p.Relative(l.base)
}

func (l *Lexer) finish(typ *token.Type, literal string, pos token.Position) token.Token {
	return token.Token{Type: typ, Literal: literal, Pos: pos, End: l.currentPos()}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	if l.pos >= len(l.input) {
		return token.Token{Type: l.family.EOF, Pos: pos, End: pos}
	}

	// Symbols first, longest match ("$$" before "$", "::" before ":").
	if tok, ok := l.matchSymbol(pos); ok {
		return tok
	}

	switch {
	case l.ch == '\'':
		lit := l.readQuoted('\'')
		return l.finish(l.family.String, lit, pos)
	case l.ch == '"':
		lit := l.readQuoted('"')
		return l.finish(l.family.Ident, lit, pos)
	case isLetter(l.ch) || l.ch == '_':
		word := l.readIdentifier()
		if kw, ok := l.family.LookupKeyword(word, l.language); ok {
			return l.finish(kw, word, pos)
		}
		return l.finish(l.family.Ident, word, pos)
	case isDigit(l.ch):
		lit := l.readNumber()
		return l.finish(l.family.Number, lit, pos)
	}

	ch := l.ch
	l.readChar()
	return l.finish(l.family.Illegal, string(ch), pos)
}

// matchSymbol matches the longest family symbol at the current position.
func (l *Lexer) matchSymbol(pos token.Position) (token.Token, bool) {
	remaining := l.input[l.pos:]
	for _, s := range l.symbols {
		if strings.HasPrefix(remaining, s.text) {
			for range len(s.text) {
				l.readChar()
			}
			return l.finish(s.typ, s.text, pos), true
		}
	}
	return token.Token{}, false
}

// skipWhitespaceAndComments skips whitespace and collects comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			l.collectLineComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.collectBlockComment()
			continue
		}
		break
	}
}

// collectLineComment collects a line comment.
func (l *Lexer) collectLineComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}

	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.LineComment,
		Text: l.input[startOffset:min(l.pos, len(l.input))],
		Span: token.Span{Start: startPos, End: l.currentPos()},
	})
}

// collectBlockComment collects a block comment. An unterminated comment
// runs to the end of input.
func (l *Lexer) collectBlockComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	l.readChar() // skip '/'
	l.readChar() // skip '*'

	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // skip '*'
			l.readChar() // skip '/'
			break
		}
		l.readChar()
	}

	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.BlockComment,
		Text: l.input[startOffset:min(l.pos, len(l.input))],
		Span: token.Span{Start: startPos, End: l.currentPos()},
	})
}

// readQuoted reads a quoted string or identifier. A doubled quote is an
// escaped quote: 'it''s' -> it's.
func (l *Lexer) readQuoted(quote byte) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String()
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar() // skip 'e' or 'E'
		if l.ch == '+' || l.ch == '-' {
			l.readChar() // skip sign
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

// isLetter returns true if ch is a letter. Bytes of multi-byte UTF-8
// sequences are letters so non-ASCII identifiers stay whole.
func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF, and the
// comments skipped along the way.
func Tokenize(input string, family *token.Family, language string, opts ...Option) ([]token.Token, []*token.Comment) {
	l := New(input, family, language, opts...)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.IsEOF() {
			break
		}
	}
	return tokens, l.Comments
}
