package commands

import (
	"github.com/leapstack-labs/sqlgrammar/internal/cli/output"
	"github.com/leapstack-labs/sqlgrammar/internal/report"
	"github.com/leapstack-labs/sqlgrammar/pkg/highlight"
	"github.com/spf13/cobra"
)

// NewHighlightCommand creates the highlight command.
func NewHighlightCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "highlight <file|->",
		Annotations: readsSources(),
		Short:       "Syntax highlight a source",
		Long: `Highlight a source for the terminal. Embedded regions are styled by the
embedded dialect's highlighter.

With --output json the highlighted spans are printed instead.`,
		Example: `  sqlgrammar highlight function.sql
  sqlgrammar highlight function.sql -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := cc.Dialect("")
			if err != nil {
				return err
			}
			doc, err := cc.Parser(d).Parse(cmd.Context(), src)
			if err != nil {
				return err
			}
			spans, err := highlight.Spans(cmd.Context(), doc)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(report.Spans(spans))
			}
			theme := highlight.NewTheme(r.Writer(), !r.IsTTY())
			r.Printf("%s", theme.Render(src, 0, spans))
			if len(src) > 0 && src[len(src)-1] != '\n' {
				r.Println("")
			}
			return nil
		},
	}
}
