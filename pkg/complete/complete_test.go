package complete

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgrammar/internal/testutil"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *dialect.Registry {
	t.Helper()
	reg, err := dialects.NewRegistry(context.Background(), testutil.NewTestLogger(t))
	require.NoError(t, err)
	return reg
}

func complete(t *testing.T, c *Completer, reg *dialect.Registry, name, src string, branches ...string) *Result {
	t.Helper()
	d, err := reg.Get(name)
	require.NoError(t, err)
	offset := strings.Index(src, "|")
	require.GreaterOrEqual(t, offset, 0, "cursor marker missing")
	src = src[:offset] + src[offset+1:]
	res, err := c.Complete(context.Background(), d, src, offset, branches...)
	require.NoError(t, err)
	return res
}

func TestComplete(t *testing.T) {
	reg := newRegistry(t)
	c := New(reg, WithLogger(testutil.NewTestLogger(t)))

	tests := []struct {
		name     string
		dialect  string
		branches []string
		input    string
		want     []string
		contains []string
		excludes []string
		prefix   string
	}{
		{
			name:    "statement start",
			dialect: dialects.SQL,
			input:   "|",
			want:    []string{"CREATE", "DELETE", "DO", "INSERT", "SELECT", "UPDATE"},
		},
		{
			name:    "after separator",
			dialect: dialects.SQL,
			input:   "SELECT 1; |",
			want:    []string{"CREATE", "DELETE", "DO", "INSERT", "SELECT", "UPDATE"},
		},
		{
			name:     "vendor statement",
			dialect:  dialects.SQLMySQL,
			input:    "|",
			contains: []string{"REPLACE", "SELECT"},
		},
		{
			name:     "query time branch",
			dialect:  dialects.SQL,
			branches: []string{"mysql"},
			input:    "|",
			contains: []string{"REPLACE"},
		},
		{
			name:    "keyword prefix",
			dialect: dialects.SQL,
			input:   "sel|",
			want:    []string{"SELECT"},
			prefix:  "sel",
		},
		{
			name:    "after select",
			dialect: dialects.SQL,
			input:   "SELECT |",
			want:    []string{"(", "*", "ALL", "CASE", "DISTINCT", "EXISTS", "FALSE", "NOT", "NULL", "TRUE", "<name_part>", "<number>", "<string>"},
		},
		{
			name:     "after table",
			dialect:  dialects.SQL,
			input:    "SELECT a FROM t |",
			contains: []string{",", ".", ";", "AS", "FETCH", "JOIN", "LEFT", "ORDER", "WHERE", "<alias_name>"},
			excludes: []string{"LIMIT", "FROM"},
		},
		{
			name:     "after table in mysql",
			dialect:  dialects.SQLMySQL,
			input:    "SELECT a FROM t |",
			contains: []string{"LIMIT", "FETCH", "WHERE"},
		},
		{
			name:    "clause prefix",
			dialect: dialects.SQL,
			input:   "SELECT a FROM t W|",
			want:    []string{"WHERE", "<alias_name>"},
			prefix:  "W",
		},
		{
			name:    "mandatory keyword",
			dialect: dialects.SQL,
			input:   "INSERT |",
			want:    []string{"INTO"},
		},
		{
			name:     "routine body",
			dialect:  dialects.SQL,
			input:    "DO $$ BEGIN | END $$",
			contains: []string{"BEGIN", "END", "EXCEPTION", "IF", "RAISE", "RETURN", "<variable>"},
			excludes: []string{"LEAVE", "CREATE"},
		},
		{
			name:     "vendor routine body",
			dialect:  dialects.SQLMySQL,
			input:    "DO $$ BEGIN | END $$",
			contains: []string{"LEAVE", "RETURN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := complete(t, c, reg, tt.dialect, tt.input, tt.branches...)
			labels := res.Labels()
			if tt.want != nil {
				assert.Equal(t, tt.want, labels)
			}
			for _, l := range tt.contains {
				assert.Contains(t, labels, l)
			}
			for _, l := range tt.excludes {
				assert.NotContains(t, labels, l)
			}
			assert.Equal(t, tt.prefix, res.Prefix)
		})
	}
}

func TestCompleteAfterTerminatedStatement(t *testing.T) {
	reg := newRegistry(t)
	res := complete(t, New(reg), reg, dialects.SQL, "SELECT 1;|")
	assert.True(t, res.EndAllowed)
	assert.Contains(t, res.Labels(), "SELECT")
}

func TestCompleteDelegatesToEmbeddedDialect(t *testing.T) {
	reg := newRegistry(t)
	c := New(reg)

	res := complete(t, c, reg, dialects.SQLMySQL, "DO $$ BEGIN RET| END $$")
	assert.Equal(t, dialects.PSQLMySQL, res.Dialect)
	assert.Equal(t, "RET", res.Prefix)
	assert.Contains(t, res.Labels(), "RETURN")

	res = complete(t, c, reg, dialects.SQL, "DO $$ BEGIN END $$ |")
	assert.Equal(t, dialects.SQL, res.Dialect)
	assert.True(t, res.EndAllowed)
	assert.Equal(t, []string{";"}, res.Labels())
}

func TestCompleteOpaqueRegion(t *testing.T) {
	reg := newRegistry(t)
	c := New(nil)

	res := complete(t, c, reg, dialects.SQL, "DO $$ BEGIN | END $$")
	assert.True(t, res.Opaque)
	assert.Empty(t, res.Items)
}

func TestItemsDeduplicateAliases(t *testing.T) {
	f := token.NewFamily("test")
	_, err := f.Keyword("int")
	require.NoError(t, err)
	_, err = f.Alias("integer", "int")
	require.NoError(t, err)
	_, err = f.Symbol("PLUS", "+", token.CategoryOperator)
	require.NoError(t, err)

	g := grammar.NewBuilder("types", "types", f).
		Root("type").
		OneOf("type", []string{"INT", "INTEGER", "PLUS", "name"}).
		Leaf("name", "IDENT").
		MustBuild()

	items := Items(g, g.Root().LookupCache().FirstPossibleLeafs())
	require.Len(t, items, 3)
	assert.Equal(t, "+", items[0].Label)
	assert.Equal(t, KindOperator, items[0].Kind)
	assert.Equal(t, "INT", items[1].Label)
	assert.Equal(t, KindKeyword, items[1].Kind)
	assert.Equal(t, "<name>", items[2].Label)
	assert.Equal(t, KindIdentifier, items[2].Kind)
	assert.True(t, items[2].Placeholder())
	assert.False(t, items[0].Placeholder())

	assert.Equal(t, []Item{items[1], items[2]}, Filter(items, "in"))
	assert.Len(t, Filter(items, ""), 3)
}

func TestResultJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Result
	}{
		{name: "empty", value: Result{Dialect: "sql"}},
		{
			name: "every kind",
			value: Result{
				Dialect: "sql-mysql",
				Prefix:  "se",
				Items: []Item{
					{Label: "SELECT", Kind: KindKeyword},
					{Label: "+", Kind: KindOperator},
					{Label: ",", Kind: KindPunctuation},
					{Label: "<identifier>", Kind: KindIdentifier, Detail: "name"},
					{Label: "<number>", Kind: KindLiteral},
					{Label: "$$", Kind: KindEmbedded, Detail: "psql"},
				},
				EndAllowed: true,
				Truncated:  true,
				Opaque:     true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			var got Result
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestKindText(t *testing.T) {
	for k := KindKeyword; k <= KindEmbedded; k++ {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}

	var k Kind
	assert.ErrorContains(t, k.UnmarshalText([]byte("verb")), `unknown completion kind "verb"`)
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"verb"}`), &Item{}))
}
