// Package jit links IR compilation units into an executable namespace.
//
// A Session compiles each unit's definitions to closures over a register
// file, binds every call site eagerly, and merges the unit's symbols into
// one namespace. Units linked under a ResourceTracker can be retracted as a
// whole; everything else stays for the life of the session.
package jit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/yotto3s/listscope/internal/ir"
)

const (
	// DefaultCompileWorkers bounds parallel compilation within one unit.
	DefaultCompileWorkers = 4
	// DefaultMaxCallDepth bounds nested calls during one invocation.
	DefaultMaxCallDepth = 10000
)

// Session is the execution session. Link, Remove and Lookup are safe for
// concurrent use, but links are applied one at a time.
type Session struct {
	ns       *namespace
	trackers *trackerRegistry
	main     *ResourceTracker
	host     *HostLibrary
	logger   *slog.Logger

	workers  int
	maxDepth int
	output   io.Writer

	linkMu chan struct{} // one link at a time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for link and retract events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithHostLibrary replaces the default host library.
func WithHostLibrary(h *HostLibrary) Option {
	return func(s *Session) {
		s.host = h
	}
}

// WithOutput sets where the default host library's output functions write.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		s.output = w
	}
}

// WithCompileWorkers bounds the goroutines compiling one unit. Values
// below one mean unbounded.
func WithCompileWorkers(n int) Option {
	return func(s *Session) {
		s.workers = n
	}
}

// WithMaxCallDepth bounds nested calls. Zero disables the guard.
func WithMaxCallDepth(n int) Option {
	return func(s *Session) {
		s.maxDepth = n
	}
}

// New creates an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		ns:       newNamespace(),
		trackers: newTrackerRegistry(),
		workers:  DefaultCompileWorkers,
		maxDepth: DefaultMaxCallDepth,
		output:   os.Stdout,
		linkMu:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.host == nil {
		s.host = DefaultHostLibrary(s.output)
	}
	s.main = &ResourceTracker{id: "_rt_main"}
	return s
}

// MainTracker returns the tracker owning permanently linked symbols.
func (s *Session) MainTracker() *ResourceTracker { return s.main }

// NewTracker creates a tracker for a unit that will be retracted later.
func (s *Session) NewTracker() *ResourceTracker {
	return s.trackers.register()
}

// Link compiles unit and adds its definitions to the namespace under rt, or
// permanently when rt is nil. Either every symbol of the unit is added or
// none is.
func (s *Session) Link(ctx context.Context, unit *ir.Module, rt *ResourceTracker) error {
	if rt == nil {
		rt = s.main
	}
	if rt.Removed() {
		return fmt.Errorf("%w: %s: tracker %s already removed", ErrLink, unit.Name(), rt.ID())
	}
	if err := ir.Verify(unit); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLink, unit.Name(), err)
	}

	codes, err := compileUnit(ctx, unit, s.workers)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLink, unit.Name(), err)
	}

	select {
	case s.linkMu <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.linkMu }()

	local := make(map[string]*Symbol, len(codes))
	for _, c := range codes {
		if s.ns.has(c.name) {
			return fmt.Errorf("%w: %s: duplicate definition of symbol %s", ErrLink, unit.Name(), c.name)
		}
		local[c.name] = &Symbol{Name: c.name, Arity: c.arity, Tracker: rt, code: c, maxDepth: s.maxDepth}
	}

	// Call sites bind to this unit, then the namespace, then the host.
	// Declarations nothing calls are left unresolved.
	var generated []*Symbol
	resolved := make(map[string]*Symbol)
	for _, c := range codes {
		for i := range c.steps {
			st := &c.steps[i]
			if st.op != ir.OpCall {
				continue
			}
			if t, ok := local[st.callee]; ok {
				st.target = t
				continue
			}
			if t, ok := resolved[st.callee]; ok {
				st.target = t
				continue
			}
			decl := unit.Function(st.callee)
			if decl == nil {
				return fmt.Errorf("%w: %s: call to undeclared %s", ErrLink, unit.Name(), st.callee)
			}
			sym, gen, err := s.resolveExternal(decl)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrLink, unit.Name(), err)
			}
			if gen {
				generated = append(generated, sym)
			}
			resolved[st.callee] = sym
			st.target = sym
		}
	}

	syms := make([]*Symbol, 0, len(codes))
	for _, c := range codes {
		syms = append(syms, local[c.name])
	}
	s.ns.add(generated...)
	s.ns.add(syms...)

	s.logger.Debug("unit linked", "unit", unit.Name(), "symbols", len(syms), "host", len(generated), "tracker", rt.ID())
	return nil
}

// resolveExternal binds a declaration. gen is true when the symbol was
// produced from the host library and still has to be added to the namespace.
func (s *Session) resolveExternal(decl *ir.Function) (sym *Symbol, gen bool, err error) {
	sym = s.ns.get(decl.Name)
	if sym == nil {
		hf, ok := s.host.Lookup(decl.Name)
		if !ok {
			return nil, false, fmt.Errorf("unresolved external symbol %s", decl.Name)
		}
		sym = &Symbol{Name: decl.Name, Arity: hf.Arity, Tracker: s.main, host: &hf}
		gen = true
	}
	if sym.Arity != decl.Arity() {
		return nil, false, fmt.Errorf("symbol %s takes %d arguments, declared with %d", decl.Name, sym.Arity, decl.Arity())
	}
	return sym, gen, nil
}

// Lookup resolves name across the whole namespace.
func (s *Session) Lookup(name string) (*Symbol, error) {
	if sym := s.ns.get(name); sym != nil {
		return sym, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
}

// Remove unlinks every symbol linked under rt.
func (s *Session) Remove(rt *ResourceTracker) error {
	if rt == s.main {
		return errors.New("the main tracker cannot be removed")
	}
	if !s.trackers.release(rt) {
		return fmt.Errorf("tracker %s is not live", rt.ID())
	}
	names := s.ns.drop(rt)
	s.logger.Debug("tracker removed", "tracker", rt.ID(), "symbols", names)
	return nil
}

// Symbols returns every linked symbol sorted by name.
func (s *Session) Symbols() []*Symbol { return s.ns.list() }

// Len returns the number of linked symbols.
func (s *Session) Len() int { return s.ns.len() }

// LiveTrackers returns the number of trackers not yet removed.
func (s *Session) LiveTrackers() int { return s.trackers.count() }

// Host returns the session's host library.
func (s *Session) Host() *HostLibrary { return s.host }
