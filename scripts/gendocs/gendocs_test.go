package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/sqlgrammar/internal/testutil"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *dialect.Registry {
	t.Helper()
	reg, err := dialects.NewRegistry(context.Background(), testutil.NewTestLogger(t))
	require.NoError(t, err)
	return reg
}

func readPage(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name+".md"))
	require.NoError(t, err)
	return string(data)
}

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir, newRegistry(t)))

	index := readPage(t, dir, "index")
	for _, want := range []string{
		"Code generated by scripts/gendocs",
		"[`parse`](/cli/parse)",
		"`--dialect`",
		"`--branches`",
		"`sql-mysql`",
		"Known branches: `mysql`",
		"`SQLGRAMMAR_GRAMMAR_DIRS`",
	} {
		assert.Contains(t, index, want)
	}

	tests := []struct {
		name    string
		dialect bool
		want    []string
	}{
		{name: "parse", dialect: true, want: []string{"sqlgrammar parse <file|->", "`--tree`"}},
		{name: "complete", dialect: true, want: []string{"`--offset`"}},
		{name: "highlight", dialect: true},
		{name: "repl", dialect: true},
		{name: "check", want: []string{"`--watch`"}},
		{name: "serve", want: []string{"`--addr`"}},
		{name: "dialects"},
		{name: "version"},
		{name: "completion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := readPage(t, dir, tt.name)
			assert.Contains(t, page, "# "+tt.name)
			assert.Contains(t, page, "`--output`")
			for _, want := range tt.want {
				assert.Contains(t, page, want)
			}
			if tt.dialect {
				assert.Contains(t, page, "## Dialects and Branches")
				assert.Contains(t, page, "`sql-sqlite`")
				assert.Contains(t, page, "`--branches`")
			} else {
				assert.NotContains(t, page, "## Dialects and Branches")
				assert.NotContains(t, page, "`--branches`")
			}
		})
	}
}

func TestGenerateDialectDocs(t *testing.T) {
	reg := newRegistry(t)
	dir := t.TempDir()
	require.NoError(t, generateDialectDocs(dir, reg))

	index := readPage(t, dir, "index")
	for _, d := range reg.Dialects() {
		assert.Contains(t, index, "[`"+d.Name+"`](/dialects/"+d.Name+")")
		assert.Contains(t, readPage(t, dir, d.Name), "# "+d.Name)
	}
	assert.Contains(t, readPage(t, dir, dialects.SQLMySQL), "`routine_body`")
}

func TestCleanExample(t *testing.T) {
	tests := []struct {
		name    string
		example string
		want    string
	}{
		{name: "shared indent", example: "  # Check\n  sqlgrammar parse q.sql\n", want: "# Check\nsqlgrammar parse q.sql"},
		{name: "nested indent", example: "  a\n    b", want: "a\n  b"},
		{name: "blank lines", example: "  a\n\n  b", want: "a\n\nb"},
		{name: "no indent", example: "a\nb", want: "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanExample(tt.example))
		})
	}
}
