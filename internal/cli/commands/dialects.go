package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/internal/cli/output"
	"github.com/leapstack-labs/sqlgrammar/internal/report"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/spf13/cobra"
)

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects [name]",
		Short: "List registered dialects",
		Long: `List the built-in dialects and those loaded from grammar_dirs.

With a name, show the dialect's grammar: its parse branches, embedded
dialect and chameleon regions.`,
		Example: `  # List all dialects
  sqlgrammar dialects

  # Show one dialect as JSON
  sqlgrammar dialects sql-mysql -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				d, err := cc.Dialect(args[0])
				if err != nil {
					return err
				}
				return showDialect(cc.Renderer, d)
			}
			return listDialects(cc.Renderer, cc.Registry)
		},
	}
}

func listDialects(r *output.Renderer, reg *dialect.Registry) error {
	infos := report.Dialects(reg)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, info.Language, branchLabel(info), info.Embeds, info.Description})
	}
	r.Table([]string{"Name", "Language", "Branches", "Embeds", "Description"}, rows)
	return nil
}

func showDialect(r *output.Renderer, d *dialect.Dialect) error {
	info := report.Dialect(d)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}
	s := r.Styles()
	r.Println(output.FormatHeader(s, d.Name))
	if info.Description != "" {
		r.Println(s.Muted.Render(info.Description))
	}
	r.Println("")
	r.Println(output.FormatKeyValue(s, "Language", info.Language))
	if info.Vendor != "" {
		r.Println(output.FormatKeyValue(s, "Vendor", info.Vendor))
	}
	r.Println(output.FormatKeyValue(s, "Grammar", fmt.Sprintf("%s (%d elements, root %s)", d.Grammar().Name(), info.Elements, d.Root().Name())))
	r.Println(output.FormatKeyValue(s, "Branches", branchLabel(info)))
	if declared := d.Grammar().Branches(); len(declared) > 0 {
		r.Println(output.FormatKeyValue(s, "Declared branches", strings.Join(declared, ", ")))
	}
	if info.Embeds != "" {
		r.Println(output.FormatKeyValue(s, "Embeds", info.Embeds))
	}
	for _, c := range d.Grammar().Chameleons() {
		open, closing := c.Boundaries()
		end := "end of input"
		if closing != nil {
			end = closing.Text()
		}
		r.Println(output.FormatKeyValue(s, "Chameleon", fmt.Sprintf("%s -> %s (%s ... %s)", c.Name(), c.EmbeddedDialect(), open.Text(), end)))
	}
	return nil
}

func branchLabel(info report.DialectInfo) string {
	switch {
	case info.AllBranches:
		return "*"
	case len(info.Branches) == 0:
		return "-"
	}
	return strings.Join(info.Branches, ", ")
}
