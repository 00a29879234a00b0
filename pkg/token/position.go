package token

// Position represents a location in the source code.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Relative maps p, taken inside a fragment that starts at base, back into
// the enclosing document.
func (p Position) Relative(base Position) Position {
	if !base.IsValid() {
		return p
	}
	out := Position{Line: base.Line + p.Line - 1, Column: p.Column, Offset: base.Offset + p.Offset}
	if p.Line == 1 {
		out.Column = base.Column + p.Column - 1
	}
	return out
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Contains returns true if the span contains the given offset.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset < s.End.Offset
}

// Touches reports whether a cursor at offset is inside the span or directly
// after its last byte.
func (s Span) Touches(offset int) bool {
	return offset >= s.Start.Offset && offset <= s.End.Offset
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return s.End.Offset - s.Start.Offset
}

// IsValid returns true if both start and end positions are valid.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid()
}
