// Package listscope is the embeddable listscope runtime: an interactive
// numeric expression language compiled unit by unit into a live session.
package listscope

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/yotto3s/listscope/internal/codegen"
	"github.com/yotto3s/listscope/internal/eval"
	"github.com/yotto3s/listscope/internal/ir"
	"github.com/yotto3s/listscope/internal/jit"
	"github.com/yotto3s/listscope/internal/parser"
	"github.com/yotto3s/listscope/internal/stdlib"
	"github.com/yotto3s/listscope/internal/store"
)

// PreludeMetadataKey names the registry metadata entry that, when set,
// replaces the default prelude.
const PreludeMetadataKey = "prelude"

// Runtime is a listscope session.
type Runtime struct {
	evaluator *eval.Evaluator
	store     store.Store
	logger    *slog.Logger
	evalOpts  []eval.Option
	prelude   string // custom prelude source, DefaultPrelude if empty
	noStdlib  bool
	err       error // first option error, reported by New
}

// DefaultPrelude is the source linked before the first user entry.
var DefaultPrelude = stdlib.Prelude

// New creates a runtime and loads the prelude unless disabled.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{}
	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		if r.store != nil {
			r.store.Close()
		}
		return nil, r.err
	}
	if r.store == nil {
		r.store = store.NewMemory()
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	evalOpts := append([]eval.Option{
		eval.WithStore(r.store),
		eval.WithLogger(r.logger),
	}, r.evalOpts...)

	ev, err := eval.New(evalOpts...)
	if err != nil {
		r.store.Close()
		return nil, err
	}
	r.evaluator = ev

	if !r.noStdlib {
		if err := r.loadPrelude(); err != nil {
			r.store.Close()
			return nil, fmt.Errorf("prelude: %w", err)
		}
	}
	return r, nil
}

func (r *Runtime) loadPrelude() error {
	prelude := r.prelude
	if prelude == "" {
		prelude = DefaultPrelude
	}

	// A registry may carry its own prelude.
	if ms, ok := r.store.(store.MetadataStore); ok {
		if src, err := ms.GetMetadata(PreludeMetadataKey); err == nil && src != "" {
			r.logger.Debug("using registry prelude")
			prelude = src
		}
	}
	return r.LoadString(prelude)
}

// Eval evaluates source text, reporting recovered errors through the
// error writer. The returned error is non-nil only when evaluation stopped.
func (r *Runtime) Eval(ctx context.Context, input string) ([]*eval.Outcome, error) {
	return r.evaluator.Eval(ctx, input)
}

// EvalReader evaluates every entry read from rd.
func (r *Runtime) EvalReader(ctx context.Context, rd io.Reader) ([]*eval.Outcome, error) {
	return r.evaluator.EvalReader(ctx, rd)
}

// EvalFile evaluates a source file.
func (r *Runtime) EvalFile(ctx context.Context, path string) ([]*eval.Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.EvalReader(ctx, f)
}

// LoadString links definitions quietly, stopping at the first error.
func (r *Runtime) LoadString(src string) error {
	return r.evaluator.LoadReader(context.Background(), strings.NewReader(src))
}

// LoadFile links a file quietly, stopping at the first error.
func (r *Runtime) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.evaluator.LoadReader(ctx, f)
}

// Symbols returns the live symbols of the session.
func (r *Runtime) Symbols() []*jit.Symbol {
	return r.evaluator.Symbols()
}

// Blueprints returns the durable registry contents.
func (r *Runtime) Blueprints() ([]*store.Blueprint, error) {
	return r.evaluator.Blueprints()
}

// CurrentUnit returns the unit being filled.
func (r *Runtime) CurrentUnit() *ir.Module {
	return r.evaluator.CurrentUnit()
}

// LiveTrackers reports how many resource trackers are still attached.
func (r *Runtime) LiveTrackers() int {
	return r.evaluator.Session().LiveTrackers()
}

// Call invokes a linked symbol directly.
func (r *Runtime) Call(ctx context.Context, name string, args ...float64) (float64, error) {
	sym, err := r.evaluator.Session().Lookup(name)
	if err != nil {
		return 0, err
	}
	return sym.Call(ctx, args...)
}

// Close releases the registry.
func (r *Runtime) Close() error {
	return r.evaluator.Close()
}

// Error kinds reported by Eval.
var (
	ErrUnknownVariable       = codegen.ErrUnknownVariable
	ErrUnknownFunction       = codegen.ErrUnknownFunction
	ErrArgumentCountMismatch = codegen.ErrArgumentCountMismatch
	ErrRedefinition          = codegen.ErrRedefinition
	ErrFunctionNotFound      = codegen.ErrFunctionNotFound
	ErrLink                  = jit.ErrLink
	ErrUnknownSymbol         = jit.ErrUnknownSymbol
	ErrCallDepth             = jit.ErrCallDepth
	ErrParse                 = parser.ErrParse
)

