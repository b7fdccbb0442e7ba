// Package codegen translates syntax trees into IR compilation units.
//
// An Environment owns the unit currently being filled, the blueprint
// registry that lets later units re-declare functions defined in earlier
// ones, and the per-unit pass pipeline. It is not safe for concurrent use.
package codegen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yotto3s/listscope/internal/ast"
	"github.com/yotto3s/listscope/internal/ir"
	"github.com/yotto3s/listscope/internal/parser"
	"github.com/yotto3s/listscope/internal/store"
)

// Environment generates IR for one top-level entry at a time.
type Environment struct {
	unit     *ir.Module
	nextUnit int
	pipeline *ir.Pipeline
	registry store.Store
	journal  []registryWrite
	logger   *slog.Logger
}

// registryWrite remembers the entry a registry write replaced so the write
// can be undone. prev is nil when the name was new.
type registryWrite struct {
	name string
	prev *store.Blueprint
}

// Option configures an Environment.
type Option func(*Environment)

// WithStore sets the blueprint registry backend.
func WithStore(s store.Store) Option {
	return func(e *Environment) {
		e.registry = s
	}
}

// WithLogger sets the logger for unit and registry events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) {
		e.logger = l
	}
}

// New creates an Environment with an empty first unit.
func New(opts ...Option) *Environment {
	e := &Environment{}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = store.NewMemory()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	e.rotate()
	return e
}

// Unit returns the compilation unit currently being filled.
func (e *Environment) Unit() *ir.Module { return e.unit }

// Registry returns the blueprint store.
func (e *Environment) Registry() store.Store { return e.registry }

func (e *Environment) rotate() {
	if e.unit != nil {
		e.logger.Debug("unit closed", "unit", e.unit.Name(), "functions", len(e.unit.Functions()), "passes", e.pipeline.Stats())
	}
	e.unit = ir.NewModule(e.nextUnit)
	e.nextUnit++
	e.pipeline = ir.DefaultPipeline()
}

// TakeUnit hands the current unit to the caller and starts a fresh one.
// Registry writes made for the unit stay pending until Commit or Rollback.
func (e *Environment) TakeUnit() *ir.Module {
	u := e.unit
	e.rotate()
	return u
}

// Commit makes pending registry writes permanent.
func (e *Environment) Commit() {
	e.journal = e.journal[:0]
}

// Rollback undoes pending registry writes, newest first.
func (e *Environment) Rollback() error {
	return e.rollbackTo(0)
}

// Abandon discards the current unit and undoes its registry writes.
func (e *Environment) Abandon() error {
	err := e.rollbackTo(0)
	e.logger.Debug("unit abandoned", "unit", e.unit.Name())
	e.rotate()
	return err
}

func (e *Environment) rollbackTo(mark int) error {
	for i := len(e.journal) - 1; i >= mark; i-- {
		w := e.journal[i]
		var err error
		if w.prev == nil {
			err = e.registry.Delete(w.name)
		} else {
			err = e.registry.Put(w.prev)
		}
		if err != nil {
			e.journal = e.journal[:i+1]
			return fmt.Errorf("rollback registry entry %s: %w", w.name, err)
		}
		e.logger.Debug("registry write undone", "name", w.name)
	}
	e.journal = e.journal[:mark]
	return nil
}

func (e *Environment) record(bp *store.Blueprint) error {
	prev, err := e.registry.Get(bp.Name)
	if err != nil {
		return fmt.Errorf("registry lookup %s: %w", bp.Name, err)
	}
	if err := e.registry.Put(bp); err != nil {
		return fmt.Errorf("registry write %s: %w", bp.Name, err)
	}
	e.journal = append(e.journal, registryWrite{name: bp.Name, prev: prev})
	e.logger.Debug("registry write", "blueprint", bp.String(), "defined", bp.Defined)
	return nil
}

// Codegen generates IR for one top-level entry.
func (e *Environment) Codegen(top ast.TopLevel) (*ir.Function, error) {
	switch top := top.(type) {
	case *ast.Prototype:
		return e.GenPrototype(top)
	case *ast.Function:
		return e.GenFunction(top)
	}
	return nil, fmt.Errorf("codegen: unexpected entry %T", top)
}

// GenPrototype declares p in the current unit and records its blueprint.
func (e *Environment) GenPrototype(p *ast.Prototype) (*ir.Function, error) {
	if err := checkReserved(p.FuncName); err != nil {
		return nil, err
	}
	bp, err := e.registry.Get(p.FuncName)
	if err != nil {
		return nil, fmt.Errorf("registry lookup %s: %w", p.FuncName, err)
	}
	if bp != nil && bp.Defined && bp.Arity() != p.Arity() {
		return nil, fmt.Errorf("%w: `%s` is defined with %d parameters, declared with %d",
			ErrRedefinition, p.FuncName, bp.Arity(), p.Arity())
	}

	if fn := e.unit.Function(p.FuncName); fn != nil {
		if fn.Arity() != p.Arity() {
			return nil, fmt.Errorf("%w: `%s` already declared with %d parameters",
				ErrRedefinition, p.FuncName, fn.Arity())
		}
		return fn, nil
	}

	fn := ir.NewFunction(p.FuncName, p.Params)
	if err := e.unit.Add(fn); err != nil {
		return nil, err
	}
	defined := bp != nil && bp.Defined
	if err := e.record(&store.Blueprint{Name: p.FuncName, Params: p.Params, Defined: defined}); err != nil {
		e.unit.Remove(p.FuncName)
		return nil, err
	}
	return fn, nil
}

// GenFunction generates a definition for fn. A failure leaves no trace: the
// staged function is removed from the unit (or reverted to the declaration
// it started from) and its registry writes are undone.
func (e *Environment) GenFunction(fn *ast.Function) (*ir.Function, error) {
	return e.genFunction(fn.Proto, fn.Anonymous, func(b *ir.Builder, scope Scope) (ir.Value, error) {
		return e.genExpr(b, scope, fn.Body)
	})
}

// BodyFunc emits a function body and returns the value it yields.
type BodyFunc func(b *ir.Builder, scope Scope) (ir.Value, error)

func (e *Environment) genFunction(proto *ast.Prototype, anonymous bool, body BodyFunc) (*ir.Function, error) {
	name := proto.FuncName
	existing := e.unit.Function(name)
	if existing != nil && !existing.IsDeclaration() {
		return nil, fmt.Errorf("%w: `%s`", ErrRedefinition, name)
	}
	if !anonymous {
		if err := checkReserved(name); err != nil {
			return nil, err
		}
		bp, err := e.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("registry lookup %s: %w", name, err)
		}
		if bp != nil && bp.Defined {
			return nil, fmt.Errorf("%w: `%s`", ErrRedefinition, name)
		}
	}
	if existing != nil && existing.Arity() != proto.Arity() {
		return nil, fmt.Errorf("%w: `%s` declared with %d parameters, defined with %d",
			ErrRedefinition, name, existing.Arity(), proto.Arity())
	}

	mark := len(e.journal)
	f := existing
	var declared []string
	if f == nil {
		f = ir.NewFunction(name, proto.Params)
		if err := e.unit.Add(f); err != nil {
			return nil, err
		}
		if !anonymous {
			if err := e.record(&store.Blueprint{Name: name, Params: proto.Params}); err != nil {
				e.unit.Remove(name)
				return nil, err
			}
		}
	} else {
		declared = f.ParamNames()
		for i, p := range proto.Params {
			f.Params[i].Name = p
		}
	}

	discard := func() {
		if existing == nil {
			e.unit.Remove(name)
		} else {
			f.DropBody()
			for i, p := range declared {
				f.Params[i].Name = p
			}
		}
		if err := e.rollbackTo(mark); err != nil {
			e.logger.Warn("registry rollback failed", "function", name, "error", err)
		}
	}

	b := ir.NewBuilder(f)
	ret, err := body(b, newScope(f))
	if err != nil {
		discard()
		return nil, err
	}
	b.Ret(ret)

	if err := ir.VerifyFunction(e.unit, f); err != nil {
		discard()
		return nil, err
	}
	e.pipeline.Run(f)

	if !anonymous {
		if err := e.record(&store.Blueprint{Name: name, Params: f.ParamNames(), Defined: true}); err != nil {
			discard()
			return nil, err
		}
	}
	return f, nil
}

// checkReserved rejects user names that could collide with anonymous
// wrappers.
func checkReserved(name string) error {
	if strings.HasPrefix(name, parser.AnonPrefix) {
		return fmt.Errorf("%w: `%s` uses the reserved prefix %s", ErrRedefinition, name, parser.AnonPrefix)
	}
	return nil
}

// Resolve finds a function for a call site: first in the current unit, then
// by re-declaring a registry blueprint into the current unit.
func (e *Environment) Resolve(name string) (*ir.Function, error) {
	if fn := e.unit.Function(name); fn != nil {
		return fn, nil
	}
	bp, err := e.registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("registry lookup %s: %w", name, err)
	}
	if bp == nil {
		return nil, fmt.Errorf("%w: `%s`", ErrFunctionNotFound, name)
	}
	fn := ir.NewFunction(bp.Name, bp.Params)
	if err := e.unit.Add(fn); err != nil {
		return nil, err
	}
	e.logger.Debug("blueprint materialized", "function", name, "unit", e.unit.Name())
	return fn, nil
}

// Reopen demotes every defined blueprint to a declaration. A durable
// registry outlives the session whose bodies it describes, so names defined
// there may be defined again.
func (e *Environment) Reopen() (int, error) {
	bps, err := e.registry.List()
	if err != nil {
		return 0, fmt.Errorf("registry list: %w", err)
	}
	n := 0
	for _, bp := range bps {
		if !bp.Defined {
			continue
		}
		bp.Defined = false
		if err := e.registry.Put(bp); err != nil {
			return n, fmt.Errorf("registry write %s: %w", bp.Name, err)
		}
		n++
	}
	if n > 0 {
		e.logger.Info("registry reopened", "demoted", n)
	}
	return n, nil
}

// Blueprints lists the registry.
func (e *Environment) Blueprints() ([]*store.Blueprint, error) {
	return e.registry.List()
}
