package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/internal/cli/output"
	"github.com/leapstack-labs/sqlgrammar/internal/report"
	"github.com/spf13/cobra"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	Tree bool
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:         "parse <file|->",
		Annotations: readsSources(),
		Short:       "Parse a source and report syntax errors",
		Long: `Parse a source with the configured dialect and report every syntax error,
including errors inside embedded regions such as routine bodies.

The command fails when the source has syntax errors.`,
		Example: `  # Check a file
  sqlgrammar parse query.sql

  # Print the parse tree of stdin
  echo "SELECT a FROM t" | sqlgrammar parse - --tree`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "Print the parse tree")

	return cmd
}

func runParse(cmd *cobra.Command, arg string, opts *ParseOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	src, err := readSource(cmd, arg)
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
	rep, err := report.Document(cmd.Context(), doc, opts.Tree)
	if err != nil {
		return err
	}

	if cc.Renderer.EffectiveMode() == output.ModeJSON {
		if err := cc.Renderer.JSON(rep); err != nil {
			return err
		}
	} else {
		renderParse(cc.Renderer, arg, rep)
	}
	if n := errorCount(rep); n > 0 {
		return fmt.Errorf("%s: %d syntax errors", arg, n)
	}
	return nil
}

func errorCount(rep *report.Parse) int {
	n := len(rep.Errors)
	for _, r := range rep.Regions {
		n += len(r.Errors)
	}
	return n
}

func renderParse(r *output.Renderer, name string, rep *report.Parse) {
	s := r.Styles()
	printDiagnostics := func(diags []report.Diagnostic, dialect string) {
		for _, d := range diags {
			r.Printf("%s:%d:%d: %s %s\n", name, d.Position.Line, d.Position.Column,
				s.Error.Render(d.Message), s.Muted.Render("["+dialect+"]"))
		}
	}
	printDiagnostics(rep.Errors, rep.Dialect)
	for _, reg := range rep.Regions {
		printDiagnostics(reg.Errors, reg.Dialect)
	}

	if rep.Tree != nil {
		printTree(r, rep.Tree, 0)
		for _, reg := range rep.Regions {
			if reg.Tree == nil {
				continue
			}
			r.Println(s.Header2.Render(fmt.Sprintf("region %s (%s)", reg.Chameleon, reg.Dialect)))
			printTree(r, reg.Tree, 1)
		}
	}

	if n := errorCount(rep); n == 0 {
		r.Printf("%s %s %s\n", s.Success.Render("✓"), name, s.Muted.Render("("+rep.Dialect+")"))
	}
}

func printTree(r *output.Renderer, n *report.TreeNode, depth int) {
	s := r.Styles()
	label := n.Kind
	if n.Element != "" {
		label = n.Element
	}
	line := strings.Repeat("  ", depth) + label
	if n.Text != "" {
		line += " " + s.Code.Render(fmt.Sprintf("%q", n.Text))
	}
	line += s.Muted.Render(fmt.Sprintf(" %d:%d", n.Range.Start.Line, n.Range.Start.Column))
	r.Println(line)
	for _, c := range n.Children {
		printTree(r, c, depth+1)
	}
}
