package commands

import (
	"fmt"

	"github.com/leapstack-labs/sqlgrammar/internal/cli/output"
	"github.com/leapstack-labs/sqlgrammar/pkg/complete"
	"github.com/spf13/cobra"
)

// CompleteOptions holds options for the complete command.
type CompleteOptions struct {
	Offset int
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	opts := &CompleteOptions{}

	cmd := &cobra.Command{
		Use:         "complete <file|->",
		Annotations: readsSources(),
		Short:       "List the completions at an offset",
		Long: `Parse the source up to a byte offset and list the tokens that may follow.

The word under the cursor is used as a prefix filter. Inside an embedded
region (a routine body) completion is delegated to the embedded dialect.`,
		Example: `  # Complete at the end of stdin
  echo "SELECT a FR" | sqlgrammar complete -

  # Complete at byte 7 of a file with the MySQL dialect
  sqlgrammar complete query.sql --offset 7 --dialect sql-mysql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Offset, "offset", -1, "Byte offset of the cursor (default: end of input)")

	return cmd
}

func runComplete(cmd *cobra.Command, arg string, opts *CompleteOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	src, err := readSource(cmd, arg)
	if err != nil {
		return err
	}
	offset := opts.Offset
	if offset < 0 {
		offset = len(src)
	}
	if offset > len(src) {
		return fmt.Errorf("offset %d beyond end of input (%d bytes)", offset, len(src))
	}

	d, err := cc.Dialect("")
	if err != nil {
		return err
	}
	doc, err := cc.Parser(d).Parse(cmd.Context(), src)
	if err != nil {
		return err
	}
	res, err := complete.New(cc.Registry, complete.WithLogger(cc.Logger)).CompleteDocument(cmd.Context(), doc, offset)
	if err != nil {
		return err
	}
	return renderCompletions(cc.Renderer, res)
}

func renderCompletions(r *output.Renderer, res *complete.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}
	s := r.Styles()
	if res.Opaque {
		r.Println(s.Muted.Render("cursor is inside an opaque region"))
		return nil
	}
	rows := make([][]string, 0, len(res.Items))
	for _, it := range res.Items {
		rows = append(rows, []string{it.Label, it.Kind.String(), it.Detail})
	}
	r.Table([]string{"Label", "Kind", "Detail"}, rows)
	footer := fmt.Sprintf("dialect %s", res.Dialect)
	if res.Prefix != "" {
		footer += fmt.Sprintf(", prefix %q", res.Prefix)
	}
	if res.EndAllowed {
		footer += ", input may end here"
	}
	if res.Truncated {
		footer += ", truncated at a recursive element"
	}
	r.Println(s.Muted.Render(footer))
	return nil
}
