package ir

import "fmt"

// Builder appends instructions to a function's entry block.
type Builder struct {
	fn *Function
}

// NewBuilder gives fn a fresh entry block and positions a builder at its end.
func NewBuilder(fn *Function) *Builder {
	fn.Body = &Block{Label: "entry"}
	fn.nextID = 0
	return &Builder{fn: fn}
}

// Function returns the function being built.
func (b *Builder) Function() *Function { return b.fn }

// Param returns the i-th parameter value.
func (b *Builder) Param(i int) *Param { return b.fn.Params[i] }

// Const returns a constant operand.
func (b *Builder) Const(v float64) *Const { return &Const{V: v} }

// Binary emits a two-operand arithmetic or comparison instruction.
func (b *Builder) Binary(op Op, lhs, rhs Value) *Instr {
	if !op.IsBinary() {
		panic(fmt.Sprintf("ir: %s is not a binary opcode", op))
	}
	return b.emit(&Instr{Op: op, Args: []Value{lhs, rhs}})
}

// Call emits a call to callee.
func (b *Builder) Call(callee *Function, args []Value) *Instr {
	return b.emit(&Instr{Op: OpCall, Callee: callee.Name, Args: args})
}

// Ret terminates the block.
func (b *Builder) Ret(v Value) {
	b.fn.Body.Ret = v
}

func (b *Builder) emit(in *Instr) *Instr {
	in.ID = b.fn.nextID
	b.fn.nextID++
	b.fn.Body.Instrs = append(b.fn.Body.Instrs, in)
	return in
}
