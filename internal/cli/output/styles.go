package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles of text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Code    lipgloss.Style
}

// NewStyles returns styles for w. Without a TTY every style renders plain.
func NewStyles(w io.Writer, isTTY bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !isTTY {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Header1: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2: r.NewStyle().Bold(true).Underline(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")),
		Code:    r.NewStyle().Foreground(lipgloss.Color("14")),
	}
}

// FormatHeader renders a section header.
func FormatHeader(s Styles, title string) string {
	return s.Header1.Render(title)
}

// FormatKeyValue renders an indented "key: value" line.
func FormatKeyValue(s Styles, key string, value any) string {
	return fmt.Sprintf("  %s: %v", s.Bold.Render(key), value)
}
