package jit

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
)

// HostFunc is a Go function callable from compiled code.
type HostFunc struct {
	Arity int
	Fn    func(args []float64) float64
}

// HostLibrary supplies definitions for external declarations that no
// linked unit defines, the way a process exports its own symbols.
type HostLibrary struct {
	mu    sync.RWMutex
	funcs map[string]HostFunc
}

// NewHostLibrary returns an empty library.
func NewHostLibrary() *HostLibrary {
	return &HostLibrary{funcs: make(map[string]HostFunc)}
}

// DefaultHostLibrary returns the math functions plus putchard and printd,
// which write to out.
func DefaultHostLibrary(out io.Writer) *HostLibrary {
	h := NewHostLibrary()
	unary := map[string]func(float64) float64{
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"exp":   math.Exp,
		"log":   math.Log,
		"sqrt":  math.Sqrt,
		"fabs":  math.Abs,
		"floor": math.Floor,
		"ceil":  math.Ceil,
	}
	for name, f := range unary {
		h.Define(name, HostFunc{Arity: 1, Fn: func(a []float64) float64 { return f(a[0]) }})
	}
	binary := map[string]func(float64, float64) float64{
		"pow":   math.Pow,
		"atan2": math.Atan2,
		"fmod":  math.Mod,
	}
	for name, f := range binary {
		h.Define(name, HostFunc{Arity: 2, Fn: func(a []float64) float64 { return f(a[0], a[1]) }})
	}

	var outMu sync.Mutex
	h.Define("putchard", HostFunc{Arity: 1, Fn: func(a []float64) float64 {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, "%c", rune(int32(a[0])))
		return 0
	}})
	h.Define("printd", HostFunc{Arity: 1, Fn: func(a []float64) float64 {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, "%f\n", a[0])
		return 0
	}})
	return h
}

// Define adds or replaces a host function.
func (h *HostLibrary) Define(name string, f HostFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs[name] = f
}

// Lookup returns the named host function.
func (h *HostLibrary) Lookup(name string) (HostFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f, ok := h.funcs[name]
	return f, ok
}

// Names returns the defined names, sorted.
func (h *HostLibrary) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.funcs))
	for name := range h.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
