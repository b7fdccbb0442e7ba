// Package ir is the SSA intermediate representation produced by code
// generation. A Module is one compilation unit: an ordered set of function
// definitions and declarations. Every value is a double, and every defined
// function is a single straight-line entry block ending in a return.
package ir

import (
	"fmt"
	"strconv"
)

// Value is an operand: a *Const, a *Param or the result of an *Instr.
type Value interface {
	// Operand renders the value as it appears in instruction operands.
	Operand() string
	value()
}

// Const is a floating-point constant.
type Const struct {
	V float64
}

func (*Const) value() {}

func (c *Const) Operand() string {
	return strconv.FormatFloat(c.V, 'g', -1, 64)
}

// Param is a function parameter.
type Param struct {
	Index int
	Name  string
}

func (*Param) value() {}

func (p *Param) Operand() string { return "%" + p.Name }

// Op is an instruction opcode.
type Op int

const (
	OpFAdd Op = iota
	OpFSub
	OpFMul
	OpFDiv
	OpFCmpULT // unordered-or-less-than, widened to 1.0 or 0.0
	OpCall
)

func (o Op) String() string {
	switch o {
	case OpFAdd:
		return "fadd"
	case OpFSub:
		return "fsub"
	case OpFMul:
		return "fmul"
	case OpFDiv:
		return "fdiv"
	case OpFCmpULT:
		return "fcmp.ult"
	case OpCall:
		return "call"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsBinary reports whether the opcode takes exactly two operands.
func (o Op) IsBinary() bool {
	return o >= OpFAdd && o <= OpFCmpULT
}

// IsCommutative reports whether operand order is irrelevant.
func (o Op) IsCommutative() bool {
	return o == OpFAdd || o == OpFMul
}

// Instr is an instruction. Its result is itself a Value.
type Instr struct {
	ID     int
	Op     Op
	Args   []Value
	Callee string // OpCall only
}

func (*Instr) value() {}

func (i *Instr) Operand() string { return "%t" + strconv.Itoa(i.ID) }

// HasSideEffects reports whether the instruction must be kept even when its
// result is unused. Calls may reach host functions that write output.
func (i *Instr) HasSideEffects() bool {
	return i.Op == OpCall
}

// Block is a straight-line instruction sequence with a return terminator.
type Block struct {
	Label  string
	Instrs []*Instr
	Ret    Value // nil until terminated
}

// Function is a definition when Body is non-nil and a declaration otherwise.
type Function struct {
	Name   string
	Params []*Param
	Body   *Block

	nextID int
}

// NewFunction returns a declaration with the given parameter names.
func NewFunction(name string, params []string) *Function {
	fn := &Function{Name: name, Params: make([]*Param, len(params))}
	for i, p := range params {
		fn.Params[i] = &Param{Index: i, Name: p}
	}
	return fn
}

// Arity returns the parameter count.
func (f *Function) Arity() int { return len(f.Params) }

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool { return f.Body == nil }

// ParamNames returns the parameter names in order.
func (f *Function) ParamNames() []string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return names
}

// DropBody turns a definition back into a declaration.
func (f *Function) DropBody() {
	f.Body = nil
	f.nextID = 0
}

// Callees returns the names of every function called from the body, in
// first-use order.
func (f *Function) Callees() []string {
	if f.Body == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, in := range f.Body.Instrs {
		if in.Op == OpCall && !seen[in.Callee] {
			seen[in.Callee] = true
			out = append(out, in.Callee)
		}
	}
	return out
}

// replaceAllUses rewrites every operand equal to old, including the return.
func (f *Function) replaceAllUses(old *Instr, repl Value) {
	for _, in := range f.Body.Instrs {
		for i, a := range in.Args {
			if a == Value(old) {
				in.Args[i] = repl
			}
		}
	}
	if f.Body.Ret == Value(old) {
		f.Body.Ret = repl
	}
}

// uses counts the operands referring to each instruction.
func (f *Function) uses() map[*Instr]int {
	n := make(map[*Instr]int)
	for _, in := range f.Body.Instrs {
		for _, a := range in.Args {
			if ai, ok := a.(*Instr); ok {
				n[ai]++
			}
		}
	}
	if ri, ok := f.Body.Ret.(*Instr); ok {
		n[ri]++
	}
	return n
}

// Module is a compilation unit.
type Module struct {
	ID    int
	funcs []*Function
	index map[string]*Function
}

// NewModule returns an empty unit.
func NewModule(id int) *Module {
	return &Module{ID: id, index: make(map[string]*Function)}
}

// Name returns the unit's display name.
func (m *Module) Name() string { return fmt.Sprintf("unit%d", m.ID) }

// Function returns the named function, or nil.
func (m *Module) Function(name string) *Function {
	return m.index[name]
}

// Functions returns the functions in insertion order.
func (m *Module) Functions() []*Function {
	out := make([]*Function, len(m.funcs))
	copy(out, m.funcs)
	return out
}

// Add inserts fn. It fails if the name is already present.
func (m *Module) Add(fn *Function) error {
	if _, ok := m.index[fn.Name]; ok {
		return fmt.Errorf("function %s already in %s", fn.Name, m.Name())
	}
	m.funcs = append(m.funcs, fn)
	m.index[fn.Name] = fn
	return nil
}

// Remove deletes the named function if present.
func (m *Module) Remove(name string) {
	if _, ok := m.index[name]; !ok {
		return
	}
	delete(m.index, name)
	for i, fn := range m.funcs {
		if fn.Name == name {
			m.funcs = append(m.funcs[:i], m.funcs[i+1:]...)
			return
		}
	}
}

// Definitions returns the functions that have bodies.
func (m *Module) Definitions() []*Function {
	var out []*Function
	for _, fn := range m.funcs {
		if !fn.IsDeclaration() {
			out = append(out, fn)
		}
	}
	return out
}

// Empty reports whether the unit holds no functions.
func (m *Module) Empty() bool { return len(m.funcs) == 0 }
