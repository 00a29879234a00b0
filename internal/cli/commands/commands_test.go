package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgrammar/internal/cli/testutil"
	"github.com/leapstack-labs/sqlgrammar/internal/config"
	itestutil "github.com/leapstack-labs/sqlgrammar/internal/testutil"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd     *cobra.Command
		name    string
		flags   []string
		dialect bool
	}{
		{cmd: NewDialectsCommand(), name: "dialects"},
		{cmd: NewCheckCommand(), name: "check", flags: []string{"watch"}},
		{cmd: NewCompleteCommand(), name: "complete", flags: []string{"offset"}, dialect: true},
		{cmd: NewParseCommand(), name: "parse", flags: []string{"tree"}, dialect: true},
		{cmd: NewHighlightCommand(), name: "highlight", dialect: true},
		{cmd: NewREPLCommand(), name: "repl", dialect: true},
		{cmd: NewServeCommand(), name: "serve", flags: []string{"addr", "watch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.cmd.Name())
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotNil(t, tt.cmd.RunE)
			assert.Equal(t, tt.dialect, UsesDialect(tt.cmd))
			for _, f := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(f), "flag --%s", f)
			}
		})
	}
}

func TestDefects(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{name: "nil", err: nil, want: nil},
		{name: "single", err: a, want: []string{"a"}},
		{name: "joined", err: errors.Join(a, b), want: []string{"a", "b"}},
		{name: "nested", err: errors.Join(a, errors.Join(b, c)), want: []string{"a", "b", "c"}},
		{name: "wrapped join", err: fmt.Errorf("dir x: %w", errors.Join(a, b)), want: []string{"a", "b"}},
		{name: "wrapped single", err: fmt.Errorf("dir x: %w", a), want: []string{"dir x: a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Defects(tt.err))
		})
	}
}

func TestCheckSources(t *testing.T) {
	logger := itestutil.NewTestLogger(t)
	good := testutil.SetupGrammarDir(t)
	manifest := testutil.WriteFiles(t, map[string]string{
		"custom.yaml": testutil.ListsManifest,
		"lists.yaml":  testutil.ListsGrammar,
	}) + "/custom.yaml"
	bad := testutil.WriteFiles(t, map[string]string{
		"manifest.yaml": testutil.ListsManifest,
		"lists.yaml":    "name: lists\nlanguage: sql\nroot: list\nelements:\n  list: {sequence: [NOPE, missing]}\n",
	})

	results, err := CheckSources(context.Background(), logger, []string{BuiltinSource, good, manifest, bad, "/does/not/exist"})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.True(t, results[0].OK)
	assert.Len(t, results[0].Dialects, 5)

	assert.True(t, results[1].OK)
	assert.Equal(t, []string{"sql-lists"}, results[1].Dialects)

	assert.True(t, results[2].OK, results[2].Defects)

	assert.False(t, results[3].OK)
	defects := strings.Join(results[3].Defects, "\n")
	assert.Contains(t, defects, "NOPE")
	assert.Contains(t, defects, "missing")

	assert.False(t, results[4].OK)
}

func TestRenderCheck(t *testing.T) {
	tr := testutil.NewTestRendererText()
	require.NoError(t, renderCheck(tr.Renderer, []CheckResult{
		{Path: "a", OK: true, Dialects: []string{"x"}},
		{Path: "b", Defects: []string{"grammar b: broken"}},
	}))
	testutil.AssertNoANSI(t, tr.Output())
	assert.Contains(t, tr.Output(), "✓ a (1 dialects)")
	assert.Contains(t, tr.Output(), "✗ b\n    grammar b: broken")
	assert.Contains(t, tr.Output(), "1 of 2 grammar sources have defects")

	tr = testutil.NewTestRendererJSON()
	require.NoError(t, renderCheck(tr.Renderer, []CheckResult{{Path: "a", OK: true}}))
	assert.Contains(t, tr.Output(), `"path": "a"`)
}

func newTestSession(t *testing.T) (*replSession, *testutil.TestRenderer) {
	t.Helper()
	logger := itestutil.NewTestLogger(t)
	reg, err := dialects.NewRegistry(context.Background(), logger)
	require.NoError(t, err)
	tr := testutil.NewTestRendererText()
	cc := &CommandContext{Cfg: config.Default(), Logger: logger, Registry: reg, Renderer: tr.Renderer}
	s, err := newREPLSession(context.Background(), cc)
	require.NoError(t, err)
	return s, tr
}

func TestREPLHandleLine(t *testing.T) {
	s, tr := newTestSession(t)

	assert.False(t, s.handleLine("SELECT a"))
	assert.Equal(t, "...> ", s.prompt())
	assert.False(t, s.handleLine("FROM t;"))
	assert.Equal(t, "sql> ", s.prompt())
	assert.Contains(t, tr.Output(), "ok")

	tr.Out.Reset()
	assert.False(t, s.handleLine("SELECT a FROM t LIMIT 1;"))
	assert.Contains(t, tr.Output(), "input:1:17")

	tr.Out.Reset()
	assert.False(t, s.handleLine(".dialect sql-mysql"))
	assert.Equal(t, "sql-mysql> ", s.prompt())
	tr.Out.Reset()
	assert.False(t, s.handleLine("SELECT a FROM t LIMIT 1;"))
	assert.Contains(t, tr.Output(), "ok")

	assert.False(t, s.handleLine(".dialect cobol"))
	assert.Contains(t, tr.ErrorOutput(), "cobol")
	assert.False(t, s.handleLine(".bogus"))
	assert.Contains(t, tr.ErrorOutput(), "Unknown command")

	assert.True(t, s.handleLine(".quit"))
}

func TestREPLCompletion(t *testing.T) {
	s, _ := newTestSession(t)

	tests := []struct {
		name   string
		line   string
		want   string
		length int
	}{
		{name: "keyword prefix", line: "SELECT a FR", want: "OM ", length: 2},
		{name: "lower case prefix", line: "select a fr", want: "om ", length: 2},
		{name: "statement start", line: "", want: "SELECT ", length: 0},
		{name: "dot command", line: ".dia", want: "lect ", length: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := []rune(tt.line)
			got, length := s.Do(line, len(line))
			assert.Equal(t, tt.length, length)
			var candidates []string
			for _, c := range got {
				candidates = append(candidates, string(c))
			}
			assert.Contains(t, candidates, tt.want)
		})
	}
}

func TestCheckResultJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		result CheckResult
	}{
		{name: "built-in", result: CheckResult{Path: "<built-in>", OK: true, Dialects: []string{"sql", "psql"}}},
		{name: "defects", result: CheckResult{Path: "grammars", Defects: []string{"lists.yaml:3: unknown token \"NOPE\""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.result)
			require.NoError(t, err)
			var got CheckResult
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.result, got)
		})
	}
}
