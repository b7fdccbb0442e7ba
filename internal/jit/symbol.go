// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package jit

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Symbol is a callable entry of the session namespace.
type Symbol struct {
	Name    string
	Arity   int
	Tracker *ResourceTracker

	code     *code
	host     *HostFunc
	maxDepth int
}

// IsHost reports whether the symbol is served by the host library.
func (s *Symbol) IsHost() bool { return s.host != nil }

// Call invokes the symbol with args.
func (s *Symbol) Call(ctx context.Context, args ...float64) (float64, error) {
	if len(args) != s.Arity {
		return 0, fmt.Errorf("%s expects %d arguments, got %d", s.Name, s.Arity, len(args))
	}
	return s.invoke(&exec{ctx: ctx, maxDepth: s.maxDepth}, args)
}

func (s *Symbol) invoke(ex *exec, args []float64) (float64, error) {
	if s.host != nil {
		return s.host.Fn(args), nil
	}
	if err := ex.ctx.Err(); err != nil {
		return 0, err
	}
	if ex.maxDepth > 0 && ex.depth >= ex.maxDepth {
		return 0, fmt.Errorf("%w: %d calls deep in %s", ErrCallDepth, ex.depth, s.Name)
	}
	ex.depth++
	defer func() { ex.depth-- }()
	return s.code.run(ex, args)
}

// namespace is the process-wide symbol table of a session.
type namespace struct {
	mu      sync.RWMutex
	symbols map[string]*Symbol
	owned   map[*ResourceTracker][]string
}

func newNamespace() *namespace {
	return &namespace{
		symbols: make(map[string]*Symbol),
		owned:   make(map[*ResourceTracker][]string),
	}
}

// get retrieves a symbol by name. Returns nil if not found.
func (n *namespace) get(name string) *Symbol {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.symbols[name]
}

// has returns true if the name exists in the namespace.
func (n *namespace) has(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.symbols[name]
	return ok
}

// add inserts syms under their trackers. The caller has checked collisions.
func (n *namespace) add(syms ...*Symbol) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range syms {
		n.symbols[s.Name] = s
		n.owned[s.Tracker] = append(n.owned[s.Tracker], s.Name)
	}
}

// drop removes every symbol owned by rt and returns their names.
func (n *namespace) drop(rt *ResourceTracker) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := n.owned[rt]
	for _, name := range names {
		delete(n.symbols, name)
	}
	delete(n.owned, rt)
	return names
}

func (n *namespace) len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.symbols)
}

// list returns every symbol sorted by name.
func (n *namespace) list() []*Symbol {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Symbol, 0, len(n.symbols))
	for _, s := range n.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
