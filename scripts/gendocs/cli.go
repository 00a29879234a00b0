package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/internal/cli"
	"github.com/leapstack-labs/sqlgrammar/internal/cli/commands"
	"github.com/leapstack-labs/sqlgrammar/internal/config"
	"github.com/leapstack-labs/sqlgrammar/internal/report"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Configuration keys that may also be set through the environment.
var envKeys = []struct{ key, desc string }{
	{"dialect", "Default dialect"},
	{"branches", "Comma separated parse branches"},
	{"grammar_dirs", "Comma separated grammar directories"},
	{"output", "Output format (auto, text, json)"},
	{"log_level", "Log level (debug, info, warn, error)"},
	{"server_addr", "Listen address of the serve command"},
}

// cliReference renders the pages of one command tree against the dialects
// of a registry.
type cliReference struct {
	root     *cobra.Command
	dialects []*dialect.Dialect
	branches []string
}

func newCLIReference(root *cobra.Command, reg *dialect.Registry) *cliReference {
	r := &cliReference{root: root, dialects: reg.Dialects()}
	for _, d := range r.dialects {
		for _, b := range d.Grammar().Branches() {
			if !slices.Contains(r.branches, b) {
				r.branches = append(r.branches, b)
			}
		}
	}
	slices.Sort(r.branches)
	return r
}

// generateCLIDocs writes index.md and a page per visible command of the
// sqlgrammar command tree.
func generateCLIDocs(outDir string, reg *dialect.Registry) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	r := newCLIReference(cli.NewRootCmd(), reg)
	if err := writePage(outDir, "index", r.index()); err != nil {
		return fmt.Errorf("failed to generate index: %w", err)
	}
	log.Printf("  Generated index.md")

	for _, cmd := range r.commands() {
		if err := writePage(outDir, cmd.Name(), r.command(cmd)); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", cmd.Name(), err)
		}
		log.Printf("  Generated %s.md", cmd.Name())
	}
	return nil
}

func writePage(dir, name string, w *MarkdownWriter) error {
	return os.WriteFile(filepath.Join(dir, name+".md"), w.Bytes(), 0600)
}

func (r *cliReference) commands() []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range r.root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (r *cliReference) index() *MarkdownWriter {
	name := r.root.Name()
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for "+name)
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(r.root.Long)

	w.Header(2, "Installation")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/sqlgrammar/cmd/sqlgrammar@latest")
	w.CodeBlock("bash", name+" <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range r.commands() {
		reads := ""
		if commands.UsesDialect(cmd) {
			reads = "yes"
		}
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
		rows = append(rows, []string{link, reads, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Reads SQL", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Paragraph("These flags are available for all commands:")
	writeFlagsTable(w, r.root.PersistentFlags(), nil)

	r.writeDialects(w)

	w.Header(2, "Environment Variables")
	var env [][]string
	for _, e := range envKeys {
		env = append(env, []string{InlineCode(config.EnvPrefix + strings.ToUpper(e.key)), e.desc})
	}
	w.Table([]string{"Variable", "Description"}, env)
	w.Paragraph("Command-line flags take precedence over environment variables, which take precedence over the config file.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error, or syntax errors in the checked source"},
	})

	w.Header(2, "Getting Help")
	w.CodeBlock("bash", fmt.Sprintf("%[1]s help\n%[1]s parse --help", name))
	return w
}

// writeDialects documents the values --dialect and --branches accept.
func (r *cliReference) writeDialects(w *MarkdownWriter) {
	w.Header(2, "Dialects and Branches")
	w.Paragraph(fmt.Sprintf("%s selects the dialect sources are read with (default %s). %s activates grammar branches on top of the dialect's preset.",
		InlineCode("--dialect"), InlineCode(config.DefaultDialect), InlineCode("--branches")))

	var rows [][]string
	for _, d := range r.dialects {
		info := report.Dialect(d)
		declared := "none"
		if b := d.Grammar().Branches(); len(b) > 0 {
			declared = strings.Join(b, ", ")
		}
		rows = append(rows, []string{InlineCode(d.Name), branches(info), declared})
	}
	w.Table([]string{"Dialect", "Preset branches", "Declared branches"}, rows)

	if len(r.branches) > 0 {
		names := make([]string, len(r.branches))
		for i, b := range r.branches {
			names[i] = InlineCode(b)
		}
		w.Paragraph("Known branches: " + strings.Join(names, ", ") + ".")
	}
}

func (r *cliReference) command(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cleanDescription(cmd.Short))
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	usage := strings.TrimSuffix(cmd.UseLine(), " [flags]")
	if cmd.HasSubCommands() {
		usage = fmt.Sprintf("%s %s <subcommand> [options]", r.root.Name(), cmd.Name())
	}
	w.CodeBlock("bash", usage)

	if len(cmd.Aliases) > 0 {
		w.Header(2, "Aliases")
		var aliases []string
		for _, a := range cmd.Aliases {
			aliases = append(aliases, InlineCode(a))
		}
		w.BulletList(aliases)
	}

	if cmd.HasSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if !sub.Hidden {
				rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
			}
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags(), nil)
	}

	readsSQL := commands.UsesDialect(cmd)
	if readsSQL {
		r.writeDialects(w)
		if len(r.dialects) > 0 {
			example := fmt.Sprintf("%s --dialect %s", usage, r.dialects[len(r.dialects)-1].Name)
			if len(r.branches) > 0 {
				example += " --branches " + r.branches[0]
			}
			w.CodeBlock("bash", example)
		}
	}

	if cmd.HasInheritedFlags() {
		w.Header(2, "Global Options")
		writeFlagsTable(w, cmd.InheritedFlags(), func(f *pflag.Flag) bool {
			return !readsSQL && (f.Name == "dialect" || f.Name == "branches")
		})
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w
}

// writeFlagsTable writes the visible flags of a set, leaving out those skip
// reports.
func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet, skip func(*pflag.Flag) bool) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || (skip != nil && skip(f)) {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		def := f.DefValue
		if f.Value.Type() == "string" && def != "" {
			def = InlineCode(def)
		}
		if def == "[]" {
			def = ""
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Short", "Default", "Description"}, rows)
}

// cleanExample removes the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
