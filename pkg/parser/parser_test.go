package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgrammar/internal/testutil"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg   *dialect.Registry
	sql   *dialect.Dialect
	mysql *dialect.Dialect
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := token.NewFamily("test")
	for _, kw := range []string{"select", "from", "limit", "begin", "end"} {
		_, err := f.Keyword(kw)
		require.NoError(t, err)
	}
	for name, text := range map[string]string{"COMMA": ",", "SEMICOLON": ";", "DOLLAR_QUOTE": "$$", "RPAREN": ")"} {
		_, err := f.Symbol(name, text, token.CategoryPunctuation)
		require.NoError(t, err)
	}

	host := grammar.NewBuilder("sql", "sql", f).
		Branches("mysql").
		Root("script").
		Iteration("script", "stmt", grammar.Separated("SEMICOLON")).
		Sequence("stmt", []string{"SELECT", "columns", "FROM", "table", "?limit_clause@mysql", "?body"}).
		Iteration("columns", "column", grammar.Separated("COMMA")).
		Leaf("column", "IDENT").
		Leaf("table", "IDENT").
		Sequence("limit_clause", []string{"LIMIT", "NUMBER"}).
		Chameleon("body", "proc", "DOLLAR_QUOTE", "DOLLAR_QUOTE").
		MustBuild()
	proc := grammar.NewBuilder("proc", "proc", f).
		Root("block").
		Sequence("block", []string{"BEGIN", "?IDENT", "END"}).
		MustBuild()

	reg := dialect.NewRegistry(testutil.NewTestLogger(t))
	fx := fixture{
		reg:   reg,
		sql:   dialect.NewDialect("sql", host).MustBuild(),
		mysql: dialect.NewDialect("sql-mysql", host).Vendor("mysql").Branches("mysql").MustBuild(),
	}
	reg.MustRegister(fx.sql)
	reg.MustRegister(fx.mysql)
	reg.MustRegister(dialect.NewDialect("proc", proc).MustBuild())
	return fx
}

func parse(t *testing.T, d *dialect.Dialect, reg *dialect.Registry, src string) *Document {
	t.Helper()
	doc, err := New(d, WithRegistry(reg), WithLogger(testutil.NewTestLogger(t))).Parse(context.Background(), src)
	require.NoError(t, err)
	return doc
}

func TestParseErrors(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name     string
		mysql    bool
		input    string
		errors   int
		expected []string
	}{
		{name: "single statement", input: "SELECT a, b FROM t"},
		{name: "statement list", input: "SELECT a FROM t; select b from u"},
		{name: "missing from", input: "SELECT a t", errors: 1, expected: []string{",", "FROM"}},
		{name: "missing column", input: "SELECT FROM t", errors: 1, expected: []string{"<column>"}},
		{name: "trailing junk", input: "SELECT a FROM t )", errors: 1, expected: []string{"$$", ";"}},
		{name: "leading junk", input: ") SELECT a FROM t", errors: 1, expected: []string{"SELECT"}},
		{name: "vendor clause inactive", input: "SELECT a FROM t LIMIT 5", errors: 1, expected: []string{"$$", ";"}},
		{name: "vendor clause active", mysql: true, input: "SELECT a FROM t LIMIT 5"},
		{name: "vendor clause expected", mysql: true, input: "SELECT a FROM t )", errors: 1, expected: []string{"$$", ";", "LIMIT"}},
		{name: "unterminated region", input: "SELECT a FROM t $$ BEGIN", errors: 1, expected: []string{"$$"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fx.sql
			if tt.mysql {
				d = fx.mysql
			}
			doc := parse(t, d, fx.reg, tt.input)
			require.Len(t, doc.Errors, tt.errors, "errors: %v", doc.Errors)
			if tt.errors > 0 {
				assert.Equal(t, tt.expected, doc.Errors[0].Expected)
			}
		})
	}
}

func TestParseTree(t *testing.T) {
	fx := newFixture(t)
	doc := parse(t, fx.sql, fx.reg, "SELECT a, b FROM t")

	assert.Equal(t, "document", doc.Tree().Kind())
	require.Equal(t, 1, doc.Root.Len())
	script := doc.Root.Children()[0]
	assert.Equal(t, "script", script.Kind())
	stmt := script.Children()[0]
	assert.Equal(t, "stmt", stmt.Kind())
	assert.Equal(t, "SELECT a , b FROM t", stmt.Text())
	assert.Equal(t, 0, stmt.Span.Start.Offset)
	assert.Equal(t, 18, stmt.Span.End.Offset)
	assert.Same(t, script, stmt.Parent)

	var columns []string
	doc.Root.Walk(func(n *Node) bool {
		if n.Element != nil && n.Element.Name() == "column" {
			columns = append(columns, n.Token.Literal)
		}
		return true
	})
	assert.Equal(t, []string{"a", "b"}, columns)
}

func TestSyntaxErrorMessage(t *testing.T) {
	fx := newFixture(t)
	doc := parse(t, fx.sql, fx.reg, "SELECT a\nt")
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, `syntax error at line 2, column 1: unexpected "t", expected ",", "FROM"`, doc.Errors[0].Error())

	doc = parse(t, fx.sql, fx.reg, "SELECT a FROM")
	require.Len(t, doc.Errors, 1)
	assert.Contains(t, doc.Errors[0].Error(), "unexpected end of input")
}

func TestPathAt(t *testing.T) {
	fx := newFixture(t)
	src := "SELECT a, b FROM t"

	tests := []struct {
		name       string
		mysql      bool
		offset     int
		want       []string
		endAllowed bool
	}{
		{name: "start of input", offset: 0, want: []string{"SELECT"}},
		{name: "after select", offset: 7, want: []string{"<column>"}},
		{name: "after column", offset: 8, want: []string{",", "FROM"}},
		{name: "after comma", offset: 9, want: []string{"<column>"}},
		{name: "before second column", offset: 10, want: []string{"<column>"}},
		{name: "after from", offset: 17, want: []string{"<table>"}},
		{name: "end", offset: 18, want: []string{"$$", ";"}, endAllowed: true},
		{name: "end with vendor", mysql: true, offset: 18, want: []string{"$$", ";", "LIMIT"}, endAllowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fx.sql
			if tt.mysql {
				d = fx.mysql
			}
			doc := parse(t, d, fx.reg, src)
			res := doc.NextLeafs(tt.offset)
			assert.Equal(t, tt.want, Labels(d.Grammar(), res.Leafs), "path %s", doc.PathAt(tt.offset))
			assert.Equal(t, tt.endAllowed, res.EndAllowed)
		})
	}
}

func TestPathAtErrorRecovery(t *testing.T) {
	fx := newFixture(t)
	doc := parse(t, fx.sql, fx.reg, "SELECT a FROM t ) ")
	res := doc.NextLeafs(18)
	assert.Equal(t, []string{"$$", ";"}, Labels(fx.sql.Grammar(), res.Leafs))
}

func TestEmbeddedRegion(t *testing.T) {
	fx := newFixture(t)
	src := "SELECT a FROM t $$ BEGIN x END $$; SELECT b FROM u"
	doc := parse(t, fx.sql, fx.reg, src)
	require.Empty(t, doc.Errors)
	require.Len(t, doc.Regions, 1)

	r := doc.Regions[0]
	assert.False(t, r.Opaque())
	assert.False(t, r.Unterminated)
	assert.Equal(t, "proc", r.Dialect().Name)
	assert.Equal(t, " BEGIN x END ", r.Source)
	assert.Equal(t, "$$", r.Close.Literal)

	sub, err := r.Document(context.Background())
	require.NoError(t, err)
	require.Empty(t, sub.Errors)
	require.NotEmpty(t, sub.Tokens)
	assert.Equal(t, "BEGIN", sub.Tokens[0].Literal)
	assert.Equal(t, strings.Index(src, "BEGIN"), sub.Tokens[0].Pos.Offset)
	assert.Equal(t, 1, sub.Tokens[0].Pos.Line)
	assert.Equal(t, strings.Index(src, "BEGIN")+1, sub.Tokens[0].Pos.Column)

	again, err := r.Document(context.Background())
	require.NoError(t, err)
	assert.Same(t, sub, again)

	got, ok := doc.RegionAt(strings.Index(src, "x"))
	require.True(t, ok)
	assert.Same(t, r, got)
	_, ok = doc.RegionAt(3)
	assert.False(t, ok)

	require.Len(t, doc.Events, 4)
	for _, ev := range doc.Events {
		assert.Equal(t, r.ID, ev.Region)
	}
	assert.Equal(t, dialect.StateEmbedded, doc.Events[1].To)
	assert.Equal(t, dialect.StateHost, doc.Events[3].To)
}

func TestOpaqueRegionWithoutRegistry(t *testing.T) {
	fx := newFixture(t)
	doc, err := New(fx.sql).Parse(context.Background(), "SELECT a FROM t $$ anything ; goes $$")
	require.NoError(t, err)
	require.Empty(t, doc.Errors)
	require.Len(t, doc.Regions, 1)

	r := doc.Regions[0]
	assert.True(t, r.Opaque())
	assert.Nil(t, r.Dialect())
	sub, err := r.Document(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.True(t, doc.Events[0].Opaque())
}

func TestParseCancelled(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fx.sql).Parse(ctx, "SELECT a FROM t")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLeftRecursionTerminates(t *testing.T) {
	f := token.NewFamily("expr")
	_, err := f.Symbol("PLUS", "+", token.CategoryOperator)
	require.NoError(t, err)
	g := grammar.NewBuilder("expr", "expr", f).
		Root("expr").
		OneOf("expr", []string{"sum", "NUMBER"}).
		Sequence("sum", []string{"expr", "PLUS", "NUMBER"}).
		MustBuild()
	d := dialect.NewDialect("expr", g).MustBuild()

	doc, err := New(d).Parse(context.Background(), "1 + 2")
	require.NoError(t, err)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "+", doc.Errors[0].Found.Literal)
	// The completed expr is not seen as the left edge of sum.
	assert.Empty(t, doc.Errors[0].Expected)
}

func TestPredictorBelongsToView(t *testing.T) {
	fx := newFixture(t)
	parse(t, fx.sql, fx.reg, "SELECT a FROM t")
	view := fx.sql.Grammar().Engine().View(fx.sql.Branches())
	stored := view.Derived(predictorKey{}, func(*grammar.View) any {
		t.Fatal("parsing did not keep its predictor on the view")
		return nil
	})
	assert.Same(t, predictorFor(view), stored)

	rebuilt := newFixture(t)
	parse(t, rebuilt.sql, rebuilt.reg, "SELECT a FROM t")
	rebuiltView := rebuilt.sql.Grammar().Engine().View(rebuilt.sql.Branches())
	assert.NotSame(t, predictorFor(view), predictorFor(rebuiltView), "a rebuilt grammar gets its own predictor")
}

func TestTrailingSeparator(t *testing.T) {
	fx := newFixture(t)
	g := grammar.NewBuilder("lenient", "sql", fx.sql.Grammar().Family()).
		Root("script").
		Iteration("script", "stmt", grammar.Separated("SEMICOLON"), grammar.Trailing()).
		Sequence("stmt", []string{"SELECT", "column", "FROM", "column"}).
		Leaf("column", "IDENT").
		MustBuild()
	lenient := dialect.NewDialect("lenient", g).MustBuild()

	tests := []struct {
		name   string
		input  string
		errors int
	}{
		{name: "single statement", input: "SELECT a FROM t;"},
		{name: "statement list", input: "SELECT a FROM t; SELECT b FROM u;"},
		{name: "without separator", input: "SELECT a FROM t"},
		{name: "junk after separator", input: "SELECT a FROM t; )", errors: 1},
		{name: "doubled separator", input: "SELECT a FROM t;;", errors: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, lenient, fx.reg, tt.input)
			assert.Len(t, doc.Errors, tt.errors, "errors: %v", doc.Errors)
		})
	}

	doc := parse(t, lenient, fx.reg, "SELECT a FROM t;")
	res := doc.NextLeafs(16)
	assert.Equal(t, []string{"SELECT"}, Labels(g, res.Leafs))
	assert.True(t, res.EndAllowed)

	strict := parse(t, fx.sql, fx.reg, "SELECT a FROM t;")
	assert.NotEmpty(t, strict.Errors)
}
