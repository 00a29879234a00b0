package grammar

import (
	"sync"
	"testing"

	"github.com/leapstack-labs/sqlgrammar/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFamily(t *testing.T) *token.Family {
	t.Helper()
	f := token.NewFamily("test")
	for _, kw := range []string{"select", "from", "where", "distinct", "all", "limit", "top", "begin", "end"} {
		_, err := f.Keyword(kw)
		require.NoError(t, err)
	}
	for name, text := range map[string]string{"COMMA": ",", "LPAREN": "(", "RPAREN": ")", "DOLLAR_QUOTE": "$$", "PLUS": "+"} {
		_, err := f.Symbol(name, text, token.CategoryPunctuation)
		require.NoError(t, err)
	}
	return f
}

// selectGrammar is: stmt = SELECT column (',' column)* FROM table
func selectGrammar(t *testing.T) *Grammar {
	t.Helper()
	g, err := NewBuilder("select", "sql", testFamily(t)).
		Root("stmt").
		Sequence("stmt", []string{"SELECT", "?quantifier", "columns", "FROM", "table", "?where_clause"}).
		OneOf("quantifier", []string{"DISTINCT", "ALL"}).
		Iteration("columns", "column", Separated("COMMA"), Wrapping(WrapChopDownIfLong)).
		Leaf("column", "IDENT").
		Leaf("table", "IDENT").
		Sequence("where_clause", []string{"WHERE", "expr"}).
		OneOf("expr", []string{"column", "paren_expr"}).
		Sequence("paren_expr", []string{"LPAREN", "expr", "RPAREN"}).
		Build()
	require.NoError(t, err)
	return g
}

func names(g *Grammar, s LeafSet) []string {
	var out []string
	for _, e := range s.Elements(g) {
		out = append(out, e.Name())
	}
	return out
}

func TestCacheSubsetInvariants(t *testing.T) {
	g := selectGrammar(t)
	for _, e := range g.Elements() {
		c := e.LookupCache()
		assert.True(t, c.FirstPossibleLeafs().IsSubsetOf(c.AllPossibleLeafs()), "first ⊆ all for %s", e.Name())
		assert.True(t, c.FirstRequiredLeafs().IsSubsetOf(c.FirstPossibleLeafs()), "required ⊆ first for %s", e.Name())
	}
}

func TestLeafCache(t *testing.T) {
	g := selectGrammar(t)
	col := g.MustLookup("column")
	c := col.LookupCache()

	want := NewLeafSet(col.ID())
	assert.True(t, c.AllPossibleLeafs().Equal(want))
	assert.True(t, c.FirstPossibleLeafs().Equal(want))
	assert.True(t, c.FirstRequiredLeafs().Equal(want))
	assert.True(t, col.IsIdentifier())
}

func TestSequenceSkipLaw(t *testing.T) {
	f := testFamily(t)
	g, err := NewBuilder("skip", "sql", f).
		Root("seq").
		Sequence("seq", []string{"?DISTINCT", "?ALL", "mandatory", "FROM"}).
		Sequence("mandatory", []string{"?TOP", "SELECT"}).
		Build()
	require.NoError(t, err)

	seq := g.MustLookup("seq")
	c := seq.LookupCache()

	var union LeafSet
	for i := 0; i <= 2; i++ {
		union.UnionWith(seq.Child(i).LookupCache().FirstPossibleLeafs())
	}
	assert.True(t, c.FirstPossibleLeafs().Equal(union))
	assert.ElementsMatch(t, []string{"DISTINCT", "ALL", "TOP", "SELECT"}, names(g, c.FirstPossibleLeafs()))

	assert.True(t, c.FirstRequiredLeafs().Equal(seq.Child(2).LookupCache().FirstRequiredLeafs()))
	assert.Equal(t, []string{"SELECT"}, names(g, c.FirstRequiredLeafs()))
	assert.NotContains(t, names(g, c.FirstPossibleLeafs()), "FROM")
}

func TestSequenceAllOptionalHasNoRequiredLeafs(t *testing.T) {
	g, err := NewBuilder("opt", "sql", testFamily(t)).
		Root("root").
		Sequence("root", []string{"SELECT", "tail"}).
		Sequence("tail", []string{"?WHERE", "?LIMIT"}).
		Build()
	require.NoError(t, err)

	c := g.MustLookup("tail").LookupCache()
	assert.ElementsMatch(t, []string{"WHERE", "LIMIT"}, names(g, c.FirstPossibleLeafs()))
	assert.True(t, c.FirstRequiredLeafs().IsEmpty())
}

func TestAlternationUnionLaw(t *testing.T) {
	g := selectGrammar(t)
	q := g.MustLookup("quantifier")
	c := q.LookupCache()

	var union LeafSet
	for _, child := range q.ChildElements() {
		union.UnionWith(child.LookupCache().FirstPossibleLeafs())
	}
	assert.True(t, c.FirstPossibleLeafs().Equal(union))
	assert.True(t, c.FirstRequiredLeafs().Equal(union), "all alternatives mandatory")
}

func TestAlternationWithOptionalAlternativeIsNotRequired(t *testing.T) {
	g, err := NewBuilder("alt", "sql", testFamily(t)).
		Root("root").
		Sequence("root", []string{"choice", "FROM"}).
		OneOf("choice", []string{"SELECT", "?DISTINCT"}).
		Build()
	require.NoError(t, err)

	choice := g.MustLookup("choice")
	assert.True(t, choice.IsOptional())
	assert.True(t, choice.LookupCache().FirstRequiredLeafs().IsEmpty())

	// the optional alternation lets FROM start the sequence
	root := g.Root().LookupCache()
	assert.ElementsMatch(t, []string{"SELECT", "DISTINCT", "FROM"}, names(g, root.FirstPossibleLeafs()))
}

func TestWrapperOptionalityLaw(t *testing.T) {
	g, err := NewBuilder("wrap", "sql", testFamily(t)).
		Root("root").
		Sequence("root", []string{"w", "FROM"}).
		Wrapper("w", "inner").
		Sequence("inner", []string{"SELECT", "DISTINCT"}).
		Build()
	require.NoError(t, err)

	w := g.MustLookup("w")
	inner := g.MustLookup("inner")
	assert.True(t, w.IsOptional())
	assert.True(t, w.LookupCache().FirstRequiredLeafs().IsEmpty())
	assert.False(t, inner.LookupCache().FirstRequiredLeafs().IsEmpty())
	assert.True(t, w.LookupCache().FirstPossibleLeafs().Equal(inner.LookupCache().FirstPossibleLeafs()))
	assert.True(t, w.LookupCache().AllPossibleLeafs().Equal(inner.LookupCache().AllPossibleLeafs()))
}

func TestIterationIncludesSeparatorInAll(t *testing.T) {
	g := selectGrammar(t)
	cols := g.MustLookup("columns")
	c := cols.LookupCache()

	assert.Equal(t, []string{"column"}, names(g, c.FirstPossibleLeafs()))
	assert.Equal(t, []string{"column"}, names(g, c.FirstRequiredLeafs()))
	assert.ElementsMatch(t, []string{"column", "COMMA"}, names(g, c.AllPossibleLeafs()))
	assert.Equal(t, WrapChopDownIfLong, cols.Wrap())
	assert.Equal(t, "COMMA", cols.Separator().Name())
}

func TestCycleTermination(t *testing.T) {
	g := selectGrammar(t)
	expr := g.MustLookup("expr")
	paren := g.MustLookup("paren_expr")

	assert.ElementsMatch(t, []string{"column", "LPAREN"}, names(g, expr.LookupCache().FirstPossibleLeafs()))
	assert.Equal(t, []string{"LPAREN"}, names(g, paren.LookupCache().FirstPossibleLeafs()))
	assert.ElementsMatch(t, []string{"column", "LPAREN", "RPAREN"}, names(g, paren.LookupCache().AllPossibleLeafs()))
}

func TestMutualRecursionTermination(t *testing.T) {
	g, err := NewBuilder("mutual", "sql", testFamily(t)).
		Root("a").
		OneOf("a", []string{"b", "SELECT"}).
		Sequence("b", []string{"?c", "FROM"}).
		OneOf("c", []string{"a", "WHERE"}).
		Build()
	require.NoError(t, err)

	for _, n := range []string{"a", "b", "c"} {
		c := g.MustLookup(n).LookupCache()
		assert.ElementsMatch(t, []string{"SELECT", "FROM", "WHERE"}, names(g, c.FirstPossibleLeafs()), n)
	}
}

func TestPureLeftRecursionIsConfigError(t *testing.T) {
	_, err := NewBuilder("left", "sql", testFamily(t)).
		Root("root").
		Sequence("root", []string{"SELECT", "loop"}).
		Sequence("loop", []string{"loop", "PLUS"}).
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyFirstSet)
}

func TestIdempotence(t *testing.T) {
	g := selectGrammar(t)
	stmt := g.Root()
	a := stmt.LookupCache()
	before := a.FirstPossibleLeafs().Clone()

	b := stmt.LookupCache()
	assert.Same(t, a, b)
	assert.True(t, before.Equal(b.FirstPossibleLeafs()))

	v1 := g.Engine().View(NewBranchSet("x"))
	v2 := g.Engine().View(NewBranchSet("x"))
	assert.Same(t, v1, v2)
}

func TestChameleonOpacity(t *testing.T) {
	g, err := NewBuilder("host", "sql", testFamily(t)).
		Root("root").
		Sequence("root", []string{"SELECT", "?block"}).
		Chameleon("block", "psql", "DOLLAR_QUOTE", "DOLLAR_QUOTE").
		Build()
	require.NoError(t, err)

	block := g.MustLookup("block")
	c := block.LookupCache()
	sentinel := block.Sentinel()
	require.NotNil(t, sentinel)
	assert.Equal(t, token.CategoryOpaque, sentinel.TokenType().Category())
	assert.True(t, c.AllPossibleLeafs().Equal(NewLeafSet(sentinel.ID())))
	assert.True(t, c.FirstPossibleLeafs().Equal(NewLeafSet(sentinel.ID())))
	assert.Equal(t, "psql", block.EmbeddedDialect())

	open, closeTok := block.Boundaries()
	assert.Equal(t, "DOLLAR_QUOTE", open.Name())
	assert.Equal(t, "DOLLAR_QUOTE", closeTok.Name())
}

func TestBranchFilter(t *testing.T) {
	g, err := NewBuilder("branches", "sql", testFamily(t)).
		Branches("vendorA", "vendorB").
		Root("root").
		Sequence("root", []string{"SELECT", "?limit@vendorA", "FROM"}).
		OneOf("limit", []string{"a_only@vendorA", "b_only@vendorB", "LIMIT"}).
		Sequence("a_only", []string{"TOP"}).
		Sequence("b_only", []string{"WHERE"}).
		Build()
	require.NoError(t, err)

	limit := g.MustLookup("limit")

	unfiltered := limit.LookupCache()
	assert.ElementsMatch(t, []string{"TOP", "WHERE", "LIMIT"}, names(g, unfiltered.FirstPossibleLeafs()))

	a := g.Engine().View(NewBranchSet("vendorA")).Cache(limit.ID())
	assert.ElementsMatch(t, []string{"TOP", "LIMIT"}, names(g, a.FirstPossibleLeafs()))
	assert.NotContains(t, names(g, a.AllPossibleLeafs()), "WHERE")

	unknown := g.Engine().View(NewBranchSet("nobody"))
	assert.Equal(t, []string{"LIMIT"}, names(g, unknown.Cache(limit.ID()).FirstPossibleLeafs()))
	assert.NotContains(t, names(g, unknown.Cache(g.Root().ID()).AllPossibleLeafs()), "LIMIT",
		"inactive sequence slot contributes nothing")
}

func TestContainsLeafUsesEquivalence(t *testing.T) {
	f := testFamily(t)
	_, err := f.Keyword("character")
	require.NoError(t, err)
	_, err = f.Alias("char", "CHARACTER")
	require.NoError(t, err)

	g, err := NewBuilder("alias", "sql", f).
		Root("root").
		Sequence("root", []string{"CHARACTER", "other"}).
		Sequence("other", []string{"CHAR"}).
		Build()
	require.NoError(t, err)

	root := g.Root()
	std := root.Child(0)
	alias := g.MustLookup("other").Child(0)
	assert.True(t, std.IsSameAs(alias))
	assert.False(t, std.IsSameAs(g.MustLookup("other")))
	assert.True(t, g.MustLookup("other").LookupCache().ContainsLeaf(std))
	assert.True(t, g.MustLookup("other").LookupCache().CanStartWithLeaf(std))
	assert.True(t, root.LookupCache().CanStartWithToken(alias.TokenType()))
	assert.False(t, root.LookupCache().CanStartWithToken(f.Ident))
}

func TestBuildConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  error
	}{
		{"empty sequence", func(b *Builder) {
			b.Root("r").Sequence("r", nil)
		}, ErrEmptyComposite},
		{"empty alternation", func(b *Builder) {
			b.Root("r").OneOf("r", []string{})
		}, ErrEmptyComposite},
		{"undefined branch", func(b *Builder) {
			b.Root("r").OneOf("r", []string{"SELECT@mystery"})
		}, ErrUndefinedBranch},
		{"unknown token", func(b *Builder) {
			b.Root("r").Leaf("r", "NOT_A_TOKEN")
		}, ErrUnknownToken},
		{"unresolved reference", func(b *Builder) {
			b.Root("r").Sequence("r", []string{"SELECT", "missing"})
		}, ErrUnresolvedElement},
		{"chameleon without dialect", func(b *Builder) {
			b.Root("r").Sequence("r", []string{"SELECT", "c"}).Chameleon("c", "", "DOLLAR_QUOTE", "")
		}, ErrNoEmbeddedDialect},
		{"chameleon without boundary", func(b *Builder) {
			b.Root("r").Sequence("r", []string{"SELECT", "c"}).Chameleon("c", "psql", "", "")
		}, ErrChameleonBoundary},
		{"missing root", func(b *Builder) {
			b.Root("nope").Sequence("r", []string{"SELECT"})
		}, ErrRootNotDefined},
		{"duplicate element", func(b *Builder) {
			b.Root("r").Sequence("r", []string{"SELECT"}).Sequence("r", []string{"FROM"})
		}, ErrDuplicateElement},
		{"trailing without separator", func(b *Builder) {
			b.Root("r").Iteration("r", "SELECT", Trailing())
		}, ErrInvalidDefinition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("bad", "sql", testFamily(t))
			tt.build(b)
			_, err := b.Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestBuildReportsAllDefects(t *testing.T) {
	_, err := NewBuilder("bad", "sql", testFamily(t)).
		Root("r").
		Sequence("r", []string{"missing_one", "missing_two"}).
		Leaf("l", "NOPE").
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedElement)
	assert.ErrorIs(t, err, ErrUnknownToken)
	assert.Contains(t, err.Error(), "missing_one")
	assert.Contains(t, err.Error(), "missing_two")
}

func TestConcurrentViews(t *testing.T) {
	g := selectGrammar(t)
	var wg sync.WaitGroup
	views := make([]*View, 20)
	for i := range views {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i] = g.Engine().View(NewBranchSet("a", "b"))
		}(i)
	}
	wg.Wait()
	for _, v := range views[1:] {
		assert.Same(t, views[0], v)
	}
}

func TestViewDerived(t *testing.T) {
	g := selectGrammar(t)
	v := g.Engine().View(nil)
	other := selectGrammar(t).Engine().View(nil)

	type key struct{}
	builds := 0
	build := func(v *View) any {
		builds++
		return v.Grammar()
	}
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Same(t, g, v.Derived(key{}, func(v *View) any { return build(v) }))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, builds, "built once per view")

	assert.Same(t, other.Grammar(), other.Derived(key{}, build), "each view keeps its own value")
	assert.Equal(t, 2, builds)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want Ref
	}{
		{"expr", Ref{Name: "expr"}},
		{"?expr", Ref{Name: "expr", Optional: true}},
		{"limit@mysql", Ref{Name: "limit", Branch: "mysql"}},
		{"? limit @ mysql", Ref{Name: "limit", Optional: true, Branch: "mysql"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRef(tt.in))
		})
	}
	assert.Equal(t, "?limit@mysql", Ref{Name: "limit", Optional: true, Branch: "mysql"}.String())
}

func TestBranchSet(t *testing.T) {
	var unfiltered *BranchSet
	assert.True(t, unfiltered.Has("anything"))
	assert.Equal(t, "*", unfiltered.Key())

	b := NewBranchSet("mysql", "sqlite", "mysql", "")
	assert.Equal(t, []string{"mysql", "sqlite"}, b.Names())
	assert.True(t, b.Has("mysql"))
	assert.False(t, b.Has("oracle"))
	assert.Equal(t, "[mysql,sqlite]", b.Key())

	assert.Nil(t, b.Union(nil))
	assert.Equal(t, "[mysql,oracle,sqlite]", b.Union(NewBranchSet("oracle")).Key())
	assert.Equal(t, "[]", NewBranchSet().Key())
}
