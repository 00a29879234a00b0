package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/internal/report"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
)

// generateDialectDocs generates a reference page for every built-in dialect.
func generateDialectDocs(outDir string, reg *dialect.Registry) error {
	log.Printf("Generating dialect docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := generateDialectIndex(reg, outDir); err != nil {
		return fmt.Errorf("failed to generate index: %w", err)
	}
	log.Printf("  Generated index.md")

	for _, d := range reg.Dialects() {
		if err := generateDialectPage(d, outDir); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", d.Name, err)
		}
		log.Printf("  Generated %s.md", d.Name)
	}
	return nil
}

func generateDialectIndex(reg *dialect.Registry, outDir string) error {
	w := NewMarkdownWriter()
	w.Frontmatter("Dialects", "Built-in grammar dialects")
	w.GeneratedMarker()

	w.Header(1, "Dialects")
	w.Paragraph("Every dialect pairs a grammar with a preset of parse branches. Dialects of the same family share a token vocabulary, and a chameleon element hands the text between its boundaries to an embedded dialect.")

	headers := []string{"Dialect", "Language", "Vendor", "Branches", "Description"}
	var rows [][]string
	for _, info := range report.Dialects(reg) {
		link := fmt.Sprintf("[%s](/dialects/%s)", InlineCode(info.Name), info.Name)
		rows = append(rows, []string{link, info.Language, info.Vendor, branches(info), cleanDescription(info.Description)})
	}
	w.Table(headers, rows)

	w.Header(2, "Custom Dialects")
	w.Paragraph("Grammar directories listed in " + InlineCode("grammar_dirs") + " are loaded after the built-in dialects. Each holds a " + InlineCode(dialects.DirManifest) + " naming its grammars and dialects.")
	w.CodeBlock("yaml", `family_of: sql
grammars: [lists.yaml]
dialects:
  - name: sql-lists
    grammar: lists
    description: Comma separated column lists`)

	return os.WriteFile(filepath.Join(outDir, "index.md"), w.Bytes(), 0600)
}

func generateDialectPage(d *dialect.Dialect, outDir string) error {
	info := report.Dialect(d)
	g := d.Grammar()

	w := NewMarkdownWriter()
	w.Frontmatter(d.Name, cleanDescription(info.Description))
	w.GeneratedMarker()

	w.Header(1, d.Name)
	if info.Description != "" {
		w.Paragraph(info.Description)
	}

	rows := [][]string{
		{"Language", info.Language},
		{"Grammar", fmt.Sprintf("%s (%d elements)", InlineCode(g.Name()), info.Elements)},
		{"Root", InlineCode(d.Root().Name())},
		{"Branches", branches(info)},
	}
	if info.Vendor != "" {
		rows = append(rows, []string{"Vendor", info.Vendor})
	}
	if declared := g.Branches(); len(declared) > 0 {
		rows = append(rows, []string{"Declared branches", strings.Join(declared, ", ")})
	}
	if info.Embeds != "" {
		rows = append(rows, []string{"Embeds", InlineCode(info.Embeds)})
	}
	w.Table([]string{"Property", "Value"}, rows)

	if chameleons := g.Chameleons(); len(chameleons) > 0 {
		w.Header(2, "Embedded Regions")
		var crows [][]string
		for _, c := range chameleons {
			open, closing := c.Boundaries()
			end := "end of input"
			if closing != nil {
				end = InlineCode(closing.Text())
			}
			crows = append(crows, []string{InlineCode(c.Name()), InlineCode(c.EmbeddedDialect()), InlineCode(open.Text()), end})
		}
		w.Table([]string{"Element", "Dialect", "Opens", "Closes"}, crows)
	}

	w.Header(2, "Usage")
	w.CodeBlock("bash", fmt.Sprintf("sqlgrammar parse -d %s query.sql", d.Name))

	return os.WriteFile(filepath.Join(outDir, d.Name+".md"), w.Bytes(), 0600)
}

func branches(info report.DialectInfo) string {
	switch {
	case info.AllBranches:
		return "all"
	case len(info.Branches) == 0:
		return "none"
	}
	return strings.Join(info.Branches, ", ")
}
