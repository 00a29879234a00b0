package highlight

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme maps attributes to terminal styles. Attributes with a dialect
// prefix fall back to the unprefixed style.
type Theme struct {
	renderer *lipgloss.Renderer
	styles   map[string]lipgloss.Style
}

// NewTheme creates the default theme rendering for w. A plain theme never
// emits escape sequences.
func NewTheme(w io.Writer, plain bool) *Theme {
	r := lipgloss.NewRenderer(w)
	if plain {
		r.SetColorProfile(termenv.Ascii)
	}
	t := &Theme{renderer: r, styles: make(map[string]lipgloss.Style)}
	t.Set(AttrKeyword, r.NewStyle().Bold(true).Foreground(lipgloss.Color("5")))
	t.Set(AttrIdentifier, r.NewStyle())
	t.Set(AttrLiteral, r.NewStyle().Foreground(lipgloss.Color("2")))
	t.Set(AttrOperator, r.NewStyle().Foreground(lipgloss.Color("3")))
	t.Set(AttrPunctuation, r.NewStyle().Faint(true))
	t.Set(AttrComment, r.NewStyle().Italic(true).Foreground(lipgloss.Color("8")))
	t.Set(AttrEmbedded, r.NewStyle().Underline(true))
	t.Set(AttrError, r.NewStyle().Foreground(lipgloss.Color("1")).Underline(true))
	return t
}

// Set binds a style to an attribute.
func (t *Theme) Set(attr string, style lipgloss.Style) {
	t.styles[attr] = style.TabWidth(lipgloss.NoTabConversion)
}

// Style returns the style for an attribute.
func (t *Theme) Style(attr string) (lipgloss.Style, bool) {
	if s, ok := t.styles[attr]; ok {
		return s, true
	}
	if i := strings.LastIndexByte(attr, '.'); i >= 0 {
		s, ok := t.styles[attr[i+1:]]
		return s, ok
	}
	return lipgloss.Style{}, false
}

// Render styles src with spans. base is the offset of src's first byte;
// text between spans is copied unchanged.
func (t *Theme) Render(src string, base int, spans []Span) string {
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		start, end := sp.Start.Offset-base, sp.End.Offset-base
		if start < pos || end > len(src) || start > end {
			continue
		}
		b.WriteString(src[pos:start])
		text := src[start:end]
		if style, ok := t.Style(sp.Attribute); ok {
			text = renderLines(style, text)
		}
		b.WriteString(text)
		pos = end
	}
	b.WriteString(src[pos:])
	return b.String()
}

// renderLines styles each line on its own; lipgloss pads multi-line blocks
// to a common width.
func renderLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
