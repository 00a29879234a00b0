package dialects

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/sqlgrammar/internal/testutil"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listsManifest = `family_of: sql
grammars: [lists.yaml]
dialects:
  - {name: sql-lists, grammar: lists, description: Column lists}
`

const listsGrammar = `name: lists
language: sql
root: list
elements:
  list: {iteration: column, separator: COMMA}
  column: {leaf: IDENT, identifier: true}
`

func writeGrammarDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestLoadGrammarDirs(t *testing.T) {
	dir := writeGrammarDir(t, map[string]string{
		DirManifest:  listsManifest,
		"lists.yaml": listsGrammar,
	})
	reg := dialect.NewRegistry(testutil.NewTestLogger(t))
	require.NoError(t, Load(context.Background(), reg, dir))

	assert.Contains(t, reg.List(), "sql-lists")
	assert.Contains(t, reg.List(), SQL)

	doc := parse(t, reg, "sql-lists", "a, b, c")
	assert.Empty(t, doc.Errors)

	lists, err := reg.Get("sql-lists")
	require.NoError(t, err)
	host, err := reg.Get(SQL)
	require.NoError(t, err)
	assert.Same(t, host.Family(), lists.Family())
}

func TestRegisterDirErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing manifest",
			files:   map[string]string{"lists.yaml": listsGrammar},
			wantErr: "load dialect manifest",
		},
		{
			name:    "unknown family",
			files:   map[string]string{DirManifest: "family_of: cobol\ngrammars: [lists.yaml]\n", "lists.yaml": listsGrammar},
			wantErr: "family_of",
		},
		{
			name: "unknown token",
			files: map[string]string{
				DirManifest:  listsManifest,
				"lists.yaml": "name: lists\nlanguage: sql\nroot: list\nelements:\n  list: {leaf: NOPE}\n",
			},
			wantErr: "lists",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeGrammarDir(t, tt.files)
			reg := newRegistry(t)
			err := RegisterDir(context.Background(), reg, dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), dir)
		})
	}
}

func TestRegisterManifest(t *testing.T) {
	dir := writeGrammarDir(t, map[string]string{
		"lists-manifest.yaml": listsManifest,
		"lists.yaml":          listsGrammar,
	})
	reg := newRegistry(t)
	require.NoError(t, RegisterManifest(context.Background(), reg, filepath.Join(dir, "lists-manifest.yaml")))
	assert.Contains(t, reg.List(), "sql-lists")
}
