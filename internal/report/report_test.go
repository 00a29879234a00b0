package report

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/leapstack-labs/sqlgrammar/internal/testutil"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
	"github.com/leapstack-labs/sqlgrammar/pkg/highlight"
	"github.com/leapstack-labs/sqlgrammar/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *dialect.Registry {
	t.Helper()
	reg, err := dialects.NewRegistry(context.Background(), testutil.NewTestLogger(t))
	require.NoError(t, err)
	return reg
}

func parse(t *testing.T, reg *dialect.Registry, name, src string) *parser.Document {
	t.Helper()
	d, err := reg.Get(name)
	require.NoError(t, err)
	doc, err := parser.New(d, parser.WithRegistry(reg)).Parse(context.Background(), src)
	require.NoError(t, err)
	return doc
}

func TestDialects(t *testing.T) {
	infos := Dialects(newRegistry(t))
	require.Len(t, infos, 5)

	byName := make(map[string]DialectInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	mysql := byName[dialects.SQLMySQL]
	assert.Equal(t, "sql", mysql.Language)
	assert.Equal(t, "mysql", mysql.Vendor)
	assert.Equal(t, []string{"mysql"}, mysql.Branches)
	assert.Equal(t, dialects.PSQLMySQL, mysql.Embeds)
	assert.Positive(t, mysql.Elements)

	assert.Equal(t, []string{}, byName[dialects.SQL].Branches)
}

func TestDocument(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		name       string
		src        string
		valid      bool
		hostErrors int
		regions    int
	}{
		{name: "valid select", src: "SELECT a FROM t", valid: true},
		{name: "host error", src: "SELECT a FROM t )", hostErrors: 1},
		{name: "valid routine", src: "DO $$ BEGIN RETURN; END $$", valid: true, regions: 1},
		{name: "error inside routine", src: "DO $$ BEGIN RETURN END $$", regions: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := Document(context.Background(), parse(t, reg, dialects.SQL, tt.src), true)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, rep.Valid)
			assert.Len(t, rep.Errors, tt.hostErrors)
			assert.Len(t, rep.Regions, tt.regions)
			require.NotNil(t, rep.Tree)
			assert.Equal(t, "document", rep.Tree.Kind)
			for _, r := range rep.Regions {
				assert.Equal(t, dialects.PSQL, r.Dialect)
				assert.False(t, r.Opaque)
				assert.NotNil(t, r.Tree)
			}
		})
	}
}

func TestDiagnosticsJSON(t *testing.T) {
	reg := newRegistry(t)
	rep, err := Document(context.Background(), parse(t, reg, dialects.SQL, "SELECT a FROM t )"), false)
	require.NoError(t, err)
	assert.Nil(t, rep.Tree)

	data, err := json.Marshal(rep.Errors)
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, ")", got[0]["found"])
	assert.Contains(t, got[0]["expected"], ";")
	assert.Contains(t, got[0]["message"], "syntax error at line 1, column 17")
}

func TestSpans(t *testing.T) {
	reg := newRegistry(t)
	doc := parse(t, reg, dialects.SQL, "DO $$ BEGIN END $$")
	spans, err := highlight.Spans(context.Background(), doc)
	require.NoError(t, err)

	out := Spans(spans)
	require.Len(t, out, len(spans))
	assert.Empty(t, out[0].Region, "DO is a host token")
	var embedded int
	for _, s := range out {
		if s.Dialect == dialects.PSQL {
			embedded++
			assert.NotEmpty(t, s.Region)
		}
	}
	assert.Equal(t, 2, embedded)
}

func TestJSONRoundTrip(t *testing.T) {
	pos := Position{Line: 2, Column: 5, Offset: 12}
	rng := Range{Start: pos, End: Position{Line: 2, Column: 9, Offset: 16}}
	diag := Diagnostic{Position: pos, Found: ")", Expected: []string{";", "<identifier>"}, Message: "line 2, column 5: unexpected )"}
	tree := &TreeNode{Kind: "element", Element: "stmt", Range: rng, Children: []*TreeNode{
		{Kind: "token", Text: "SELECT", Range: rng},
	}}

	tests := []struct {
		name  string
		value any
	}{
		{name: "dialect", value: DialectInfo{Name: "sql-mysql", Language: "sql", Vendor: "mysql", Description: "MySQL", Branches: []string{"mysql"}, Embeds: "psql-mysql", Elements: 80}},
		{name: "unfiltered dialect", value: DialectInfo{Name: "x", Language: "sql", Branches: []string{}, AllBranches: true}},
		{name: "position", value: pos},
		{name: "range", value: rng},
		{name: "diagnostic", value: diag},
		{name: "tree", value: *tree},
		{name: "region", value: RegionInfo{ID: "7d9f", Chameleon: "routine_body", Dialect: "psql", Unterminated: true, Range: rng, Errors: []Diagnostic{diag}, Tree: tree}},
		{name: "opaque region", value: RegionInfo{ID: "7d9f", Chameleon: "body", Opaque: true, Range: rng}},
		{name: "parse", value: Parse{Dialect: "sql", Branches: []string{}, Errors: []Diagnostic{diag}, Regions: []RegionInfo{{ID: "1", Chameleon: "body", Range: rng}}, Tree: tree}},
		{name: "valid parse", value: Parse{Dialect: "sql", Branches: []string{"mysql"}, Valid: true, Errors: []Diagnostic{}}},
		{name: "span", value: Span{Range: rng, Text: "<>", Attribute: "operator", Dialect: "sql", Region: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			got := reflect.New(reflect.TypeOf(tt.value))
			require.NoError(t, json.Unmarshal(data, got.Interface()))
			assert.Equal(t, tt.value, got.Elem().Interface())
		})
	}
}
