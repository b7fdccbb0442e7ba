// Package eval runs the top-level protocol: read an entry, parse it,
// generate IR, link the unit, and for bare expressions execute the
// anonymous wrapper once and retract it.
package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/yotto3s/listscope/internal/ast"
	"github.com/yotto3s/listscope/internal/codegen"
	"github.com/yotto3s/listscope/internal/ir"
	"github.com/yotto3s/listscope/internal/jit"
	"github.com/yotto3s/listscope/internal/parser"
	"github.com/yotto3s/listscope/internal/store"
)

// OutputWriter writes user-facing text.
type OutputWriter func(text string) error

// Kind classifies a processed entry.
type Kind int

const (
	// KindInvalid marks an entry that failed to parse.
	KindInvalid Kind = iota
	KindDefinition
	KindExtern
	KindExpression
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindDefinition:
		return "definition"
	case KindExtern:
		return "extern"
	case KindExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Outcome is the result of one entry.
type Outcome struct {
	Kind      Kind
	Name      string
	Rendering string
	Value     float64 // KindExpression only
	Err       error
}

// Evaluator drives the environment and the execution session for a stream
// of entries. It is not safe for concurrent use.
type Evaluator struct {
	env     *codegen.Environment
	session *jit.Session

	store        store.Store
	logger       *slog.Logger
	outputWriter OutputWriter
	errorWriter  OutputWriter
	hostOutput   io.Writer
	failFast     bool
	echoAST      bool
	dumpUnit     bool
	workers      int
	maxDepth     int
	nextAnon     int
	closed       bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStore sets the blueprint registry backend.
func WithStore(s store.Store) Option {
	return func(e *Evaluator) { e.store = s }
}

// WithLogger sets the structured logger shared with the environment and
// session.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithOutputWriter sets where renderings and results are written.
func WithOutputWriter(w OutputWriter) Option {
	return func(e *Evaluator) { e.outputWriter = w }
}

// WithErrorWriter sets where recovered errors are reported.
func WithErrorWriter(w OutputWriter) Option {
	return func(e *Evaluator) { e.errorWriter = w }
}

// WithHostOutput sets the writer used by putchard and printd.
func WithHostOutput(w io.Writer) Option {
	return func(e *Evaluator) { e.hostOutput = w }
}

// WithFailFast ends evaluation at the first error of any kind.
func WithFailFast(on bool) Option {
	return func(e *Evaluator) { e.failFast = on }
}

// WithEchoAST writes the rendering of every parsed entry.
func WithEchoAST(on bool) Option {
	return func(e *Evaluator) { e.echoAST = on }
}

// WithDumpUnit writes the still-open unit once, when the evaluator is
// closed.
func WithDumpUnit(on bool) Option {
	return func(e *Evaluator) { e.dumpUnit = on }
}

// WithCompileWorkers bounds parallel compilation of one unit.
func WithCompileWorkers(n int) Option {
	return func(e *Evaluator) { e.workers = n }
}

// WithMaxCallDepth bounds nested calls during execution.
func WithMaxCallDepth(n int) Option {
	return func(e *Evaluator) { e.maxDepth = n }
}

// New creates an Evaluator and links the builtin operators as the first
// unit.
func New(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		echoAST:  true,
		workers:  jit.DefaultCompileWorkers,
		maxDepth: jit.DefaultMaxCallDepth,
		outputWriter: func(text string) error {
			fmt.Print(text)
			return nil
		},
		errorWriter: func(text string) error {
			_, err := fmt.Fprint(os.Stderr, text)
			return err
		},
		hostOutput: os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.store == nil {
		e.store = store.NewMemory()
	}

	e.env = codegen.New(codegen.WithStore(e.store), codegen.WithLogger(e.logger))
	e.session = jit.New(
		jit.WithLogger(e.logger),
		jit.WithOutput(e.hostOutput),
		jit.WithCompileWorkers(e.workers),
		jit.WithMaxCallDepth(e.maxDepth),
	)

	if _, err := e.env.Reopen(); err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if err := e.env.InstallBuiltins(); err != nil {
		return nil, fmt.Errorf("install builtins: %w", err)
	}
	if err := e.session.Link(context.Background(), e.env.TakeUnit(), nil); err != nil {
		return nil, fmt.Errorf("link builtins: %w", err)
	}
	e.env.Commit()
	return e, nil
}

// Eval evaluates source text.
func (e *Evaluator) Eval(ctx context.Context, input string) ([]*Outcome, error) {
	return e.EvalReader(ctx, strings.NewReader(input))
}

// EvalReader processes every entry of r. Errors are reported and evaluation
// resumes at the next entry, unless fail-fast is set, in which case the
// first error is returned. Outcomes carry per-entry errors either way.
func (e *Evaluator) EvalReader(ctx context.Context, r io.Reader) ([]*Outcome, error) {
	p := parser.New(r)
	p.SetNextAnon(e.nextAnon)
	defer func() { e.nextAnon = p.NextAnon() }()
	var outcomes []*Outcome

	for {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		entry, err := p.ParseTopLevel()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, parser.ErrParse) {
				return outcomes, err
			}
			outcomes = append(outcomes, &Outcome{Kind: KindInvalid, Err: err})
			if stop := e.report(err); stop {
				return outcomes, err
			}
			if err := p.Synchronize(); err != nil {
				return outcomes, err
			}
			continue
		}

		out := e.EvalEntry(ctx, entry)
		outcomes = append(outcomes, out)
		if out.Err != nil {
			if stop := e.report(out.Err); stop {
				return outcomes, out.Err
			}
		}
	}
	return outcomes, nil
}

// report writes a recovered error and tells the caller whether to stop.
func (e *Evaluator) report(err error) bool {
	if e.failFast {
		e.logger.Error("entry failed", "error", err)
		return true
	}
	e.logger.Warn("entry failed", "error", err)
	if werr := e.errorWriter(fmt.Sprintf("Error: %v\n", err)); werr != nil {
		e.logger.Error("write error", "error", werr)
	}
	return false
}

// EvalEntry runs one parsed entry through codegen, link and, for bare
// expressions, execution and retraction.
func (e *Evaluator) EvalEntry(ctx context.Context, entry ast.TopLevel) *Outcome {
	out := &Outcome{Name: entry.Name(), Rendering: entry.String()}
	fn, isFunc := entry.(*ast.Function)
	switch {
	case !isFunc:
		out.Kind = KindExtern
	case fn.Anonymous:
		out.Kind = KindExpression
	default:
		out.Kind = KindDefinition
	}

	if e.echoAST {
		if err := e.write(out.Rendering + "\n"); err != nil {
			out.Err = err
			return out
		}
	}

	if _, err := e.env.Codegen(entry); err != nil {
		if rerr := e.env.Abandon(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		out.Err = err
		return out
	}
	unit := e.env.TakeUnit()

	if out.Kind != KindExpression {
		if err := e.session.Link(ctx, unit, nil); err != nil {
			out.Err = e.rollback(err)
			return out
		}
		e.env.Commit()
		return out
	}

	rt := e.session.NewTracker()
	if err := e.session.Link(ctx, unit, rt); err != nil {
		out.Err = e.rollback(err)
		if rerr := e.session.Remove(rt); rerr != nil {
			e.logger.Debug("retract after failed link", "error", rerr)
		}
		return out
	}
	e.env.Commit()

	out.Value, out.Err = e.execute(ctx, out.Name)
	if rerr := e.session.Remove(rt); rerr != nil {
		out.Err = errors.Join(out.Err, rerr)
	}
	if out.Err != nil {
		return out
	}
	out.Err = e.write(fmt.Sprintf("Evaluated to %s\n", FormatValue(out.Value)))
	return out
}

func (e *Evaluator) execute(ctx context.Context, name string) (float64, error) {
	sym, err := e.session.Lookup(name)
	if err != nil {
		return 0, err
	}
	return sym.Call(ctx)
}

func (e *Evaluator) rollback(err error) error {
	if rerr := e.env.Rollback(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

func (e *Evaluator) write(text string) error {
	return e.outputWriter(text)
}

// FormatValue renders a result the way the session prints it.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Symbols returns the linked symbols.
func (e *Evaluator) Symbols() []*jit.Symbol { return e.session.Symbols() }

// Blueprints returns the registry contents.
func (e *Evaluator) Blueprints() ([]*store.Blueprint, error) { return e.env.Blueprints() }

// CurrentUnit returns the unit being filled.
func (e *Evaluator) CurrentUnit() *ir.Module { return e.env.Unit() }

// Session returns the execution session.
func (e *Evaluator) Session() *jit.Session { return e.session }

// Close writes the trailing unit dump, if enabled, and releases the
// registry store. Later calls do nothing.
func (e *Evaluator) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var err error
	if e.dumpUnit {
		err = e.write(e.env.Unit().String())
	}
	return errors.Join(err, e.store.Close())
}

// LoadReader links every entry of r quietly: nothing is echoed and the
// first error is returned.
func (e *Evaluator) LoadReader(ctx context.Context, r io.Reader) error {
	echo, failFast := e.echoAST, e.failFast
	e.echoAST, e.failFast = false, true
	defer func() { e.echoAST, e.failFast = echo, failFast }()
	_, err := e.EvalReader(ctx, r)
	return err
}
