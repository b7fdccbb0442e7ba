package listscope

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yotto3s/listscope/internal/store"
)

func newRuntime(t *testing.T, opts ...Option) (*Runtime, *strings.Builder, *strings.Builder) {
	t.Helper()
	var out, errOut strings.Builder
	opts = append([]Option{WithOutput(&out), WithErrorOutput(&errOut), WithEchoAST(false)}, opts...)
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, &out, &errOut
}

func TestPreludeLoaded(t *testing.T) {
	r, out, _ := newRuntime(t)

	if _, err := r.Eval(context.Background(), "(avg 2 4)\n(> 5 1)\n(neg 3)"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	want := "Evaluated to 3\nEvaluated to 1\nEvaluated to -3\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestPreludeIsQuiet(t *testing.T) {
	_, out, errOut := newRuntime(t, WithEchoAST(true))
	if out.Len() != 0 || errOut.Len() != 0 {
		t.Errorf("expected no output from prelude, got %q / %q", out.String(), errOut.String())
	}
}

func TestNoStdlibOption(t *testing.T) {
	r, _, errOut := newRuntime(t, WithNoStdlib())

	outcomes, err := r.Eval(context.Background(), "(avg 2 4)")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(outcomes) != 1 || !errors.Is(outcomes[0].Err, ErrUnknownFunction) {
		t.Fatalf("expected unknown function without prelude, got %+v", outcomes)
	}
	if !strings.Contains(errOut.String(), "unknown function") {
		t.Errorf("expected reported error, got %q", errOut.String())
	}
}

func TestCustomPrelude(t *testing.T) {
	r, _, _ := newRuntime(t, WithPrelude("(define (twice x) (* 2 x))"))

	got, err := r.Call(context.Background(), "twice", 21)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %v", got)
	}
	if _, err := r.Call(context.Background(), "avg", 1, 2); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("custom prelude should replace the default, got %v", err)
	}
}

func TestBrokenPreludeFailsNew(t *testing.T) {
	_, err := New(WithPrelude("(define (f x) y)"))
	if !errors.Is(err, ErrUnknownVariable) {
		t.Fatalf("expected unknown variable from prelude, got %v", err)
	}
}

func TestRegistryPreludeOverride(t *testing.T) {
	s := store.NewMemory()
	if err := s.SetMetadata(PreludeMetadataKey, "(define (seven) 7)"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	r, _, _ := newRuntime(t, WithStore(s))

	got, err := r.Call(context.Background(), "seven")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 7 {
		t.Errorf("expected 7, got %v", got)
	}
}

func TestSQLiteRegistrySurvivesRestart(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "registry.db")

	r, _, _ := newRuntime(t, WithSQLiteStore(dsn))
	if _, err := r.Eval(context.Background(), "(define (square x) (* x x))"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	r.Close()

	r2, out, errOut := newRuntime(t, WithSQLiteStore(dsn))
	bps, err := r2.Blueprints()
	if err != nil {
		t.Fatalf("Blueprints: %v", err)
	}
	var square *Blueprint
	for _, bp := range bps {
		if bp.Name == "square" {
			square = bp
		}
	}
	if square == nil || square.Arity() != 1 || square.Defined {
		t.Fatalf("expected square(x) as a declaration after reopen, got %v", square)
	}

	// The body lived only in the previous session.
	outcomes, err := r2.Eval(context.Background(), "(square 3)")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !errors.Is(outcomes[0].Err, ErrLink) {
		t.Errorf("expected link error for a body from a closed session, got %v", outcomes[0].Err)
	}
	if !strings.Contains(errOut.String(), "unresolved external symbol square") {
		t.Errorf("unexpected error output %q", errOut.String())
	}

	if _, err := r2.Eval(context.Background(), "(define (square y) (* y y))\n(square 4)"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if out.String() != "Evaluated to 16\n" {
		t.Errorf("expected 16, got %q", out.String())
	}
}

func TestBadSQLitePath(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "missing", "dir", "registry.db")
	if _, err := New(WithSQLiteStore(dsn)); err == nil {
		t.Fatal("expected error for unopenable registry")
	}
}

func TestEvalFileAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	defs := filepath.Join(dir, "defs.ls")
	if err := os.WriteFile(defs, []byte("(define (cube x) (* x (* x x)))\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	prog := filepath.Join(dir, "prog.ls")
	if err := os.WriteFile(prog, []byte("; run\n(cube 3)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, out, _ := newRuntime(t)
	if err := r.LoadFile(context.Background(), defs); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("LoadFile should be quiet, got %q", out.String())
	}
	if _, err := r.EvalFile(context.Background(), prog); err != nil {
		t.Fatalf("EvalFile: %v", err)
	}
	if out.String() != "Evaluated to 27\n" {
		t.Errorf("expected 27, got %q", out.String())
	}
	if _, err := r.EvalFile(context.Background(), filepath.Join(dir, "nope.ls")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAnonymousWrappersAreRetracted(t *testing.T) {
	r, _, _ := newRuntime(t, WithNoStdlib())
	before := len(r.Symbols())

	for i := 0; i < 5; i++ {
		if _, err := r.Eval(context.Background(), "(+ 1 2)"); err != nil {
			t.Fatalf("Eval: %v", err)
		}
	}
	if got := len(r.Symbols()); got != before {
		t.Errorf("expected %d symbols, got %d", before, got)
	}
	if r.LiveTrackers() != 0 {
		t.Errorf("expected no live trackers, got %d", r.LiveTrackers())
	}
}

func TestFailFastOption(t *testing.T) {
	r, out, _ := newRuntime(t, WithNoStdlib(), WithFailFast(true))

	_, err := r.Eval(context.Background(), "(ghost 1)\n42")
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("expected unknown function, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected evaluation to stop, got %q", out.String())
	}
}
