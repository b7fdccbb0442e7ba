package jit

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yotto3s/listscope/internal/codegen"
	"github.com/yotto3s/listscope/internal/ir"
	"github.com/yotto3s/listscope/internal/parser"
	"github.com/yotto3s/listscope/internal/testutil"
)

type fixture struct {
	t   *testing.T
	env *codegen.Environment
	s   *Session
	p   *parser.Parser
	out *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	out := &bytes.Buffer{}
	logger := testutil.NewTestLogger(t)
	opts = append([]Option{WithLogger(logger), WithOutput(out)}, opts...)
	f := &fixture{
		t:   t,
		env: codegen.New(codegen.WithLogger(logger)),
		s:   New(opts...),
		out: out,
	}
	require.NoError(t, f.env.InstallBuiltins())
	require.NoError(t, f.s.Link(context.Background(), f.env.TakeUnit(), nil))
	f.env.Commit()
	return f
}

// unit parses and generates one entry, returning the finished unit.
func (f *fixture) unit(src string) *ir.Module {
	f.t.Helper()
	entry, err := parser.NewFromString(src).ParseTopLevel()
	require.NoError(f.t, err)
	_, err = f.env.Codegen(entry)
	require.NoError(f.t, err)
	return f.env.TakeUnit()
}

func (f *fixture) define(src string) {
	f.t.Helper()
	require.NoError(f.t, f.s.Link(context.Background(), f.unit(src), nil))
	f.env.Commit()
}

// eval runs src as a one-shot expression and retracts it.
func (f *fixture) eval(src string) (float64, error) {
	f.t.Helper()
	entry, err := parser.NewFromString(src).ParseTopLevel()
	require.NoError(f.t, err)
	fn, err := f.env.Codegen(entry)
	require.NoError(f.t, err)

	rt := f.s.NewTracker()
	require.NoError(f.t, f.s.Link(context.Background(), f.env.TakeUnit(), rt))
	f.env.Commit()
	defer func() { require.NoError(f.t, f.s.Remove(rt)) }()

	sym, err := f.s.Lookup(fn.Name)
	require.NoError(f.t, err)
	return sym.Call(context.Background())
}

func TestBuiltins(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want float64
	}{
		{"(+ 3 4)", 7},
		{"(- 3 4)", -1},
		{"(* 3 4)", 12},
		{"(/ 3 4)", 0.75},
		{"(< 3 4)", 1},
		{"(< 4 3)", 0},
		{"42", 42},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := f.eval(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCrossUnitCalls(t *testing.T) {
	f := newFixture(t)
	f.define("(define (square x) (* x x))")
	f.define("(define (quad x) (square (square x)))")

	got, err := f.eval("(quad 3)")
	require.NoError(t, err)
	assert.Equal(t, 81.0, got)
}

func TestRetractionRemovesWrapper(t *testing.T) {
	f := newFixture(t)
	before := f.s.Len()

	for i := 0; i < 3; i++ {
		_, err := f.eval("(+ 1 2)")
		require.NoError(t, err)
	}

	assert.Equal(t, before, f.s.Len())
	assert.Equal(t, 0, f.s.LiveTrackers())
	_, err := f.s.Lookup("__anon_expr0")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestRemoveTwice(t *testing.T) {
	f := newFixture(t)
	rt := f.s.NewTracker()
	require.NoError(t, f.s.Link(context.Background(), f.unit("1"), rt))
	require.NoError(t, f.s.Remove(rt))
	assert.Error(t, f.s.Remove(rt))
	assert.Error(t, f.s.Remove(f.s.MainTracker()))

	err := f.s.Link(context.Background(), f.unit("2"), rt)
	assert.ErrorIs(t, err, ErrLink)
}

func TestDuplicateSymbol(t *testing.T) {
	f := newFixture(t)
	u := ir.NewModule(99)
	fn := ir.NewFunction("+", []string{"a", "b"})
	require.NoError(t, u.Add(fn))
	b := ir.NewBuilder(fn)
	b.Ret(b.Param(0))

	before := f.s.Len()
	err := f.s.Link(context.Background(), u, nil)
	assert.ErrorIs(t, err, ErrLink)
	assert.Contains(t, err.Error(), "duplicate definition")
	assert.Equal(t, before, f.s.Len())
}

func TestUnresolvedExternal(t *testing.T) {
	f := newFixture(t)
	// A declaration nothing calls links fine.
	f.define("(extern (mystery x))")

	entry, err := parser.NewFromString("(mystery 1)").ParseTopLevel()
	require.NoError(t, err)
	_, err = f.env.Codegen(entry)
	require.NoError(t, err)

	before := f.s.Len()
	err = f.s.Link(context.Background(), f.env.TakeUnit(), f.s.NewTracker())
	assert.ErrorIs(t, err, ErrLink)
	assert.Contains(t, err.Error(), "unresolved external symbol mystery")
	assert.Equal(t, before, f.s.Len())
}

func TestInvalidUnit(t *testing.T) {
	f := newFixture(t)
	u := ir.NewModule(7)
	fn := ir.NewFunction("broken", nil)
	require.NoError(t, u.Add(fn))
	ir.NewBuilder(fn)

	assert.ErrorIs(t, f.s.Link(context.Background(), u, nil), ErrLink)
}

func TestHostLibrary(t *testing.T) {
	f := newFixture(t)
	f.define("(extern (sqrt x))")
	f.define("(extern (putchard c))")

	got, err := f.eval("(sqrt 16)")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	_, err = f.eval("(putchard 72)")
	require.NoError(t, err)
	assert.Equal(t, "H", f.out.String())

	sym, err := f.s.Lookup("sqrt")
	require.NoError(t, err)
	assert.True(t, sym.IsHost())
}

func TestHostArityMismatch(t *testing.T) {
	f := newFixture(t)
	f.define("(extern (pow x))")

	entry, err := parser.NewFromString("(pow 2)").ParseTopLevel()
	require.NoError(t, err)
	_, err = f.env.Codegen(entry)
	require.NoError(t, err)
	err = f.s.Link(context.Background(), f.env.TakeUnit(), nil)
	assert.ErrorIs(t, err, ErrLink)
}

func TestCallDepthGuard(t *testing.T) {
	f := newFixture(t, WithMaxCallDepth(50))
	f.define("(define (forever x) (forever (+ x 1)))")

	_, err := f.eval("(forever 0)")
	assert.ErrorIs(t, err, ErrCallDepth)
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.define("(define (one) 1)")
	sym, err := f.s.Lookup("one")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sym.Call(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = sym.Call(context.Background(), 1)
	assert.Error(t, err)
}

func TestParallelCompile(t *testing.T) {
	f := newFixture(t, WithCompileWorkers(2))
	u := ir.NewModule(50)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		fn := ir.NewFunction(name, []string{"x"})
		require.NoError(t, u.Add(fn))
		b := ir.NewBuilder(fn)
		b.Ret(b.Binary(ir.OpFMul, b.Param(0), b.Const(2)))
	}
	require.NoError(t, f.s.Link(context.Background(), u, nil))

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		sym, err := f.s.Lookup(name)
		require.NoError(t, err)
		got, err := sym.Call(context.Background(), 21)
		require.NoError(t, err)
		assert.Equal(t, 42.0, got)
	}
}
