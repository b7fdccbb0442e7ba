package jit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yotto3s/listscope/internal/ir"
)

// operand reads either a constant or a register.
type operand struct {
	reg   int // -1 for constants
	value float64
}

func (o operand) load(regs []float64) float64 {
	if o.reg < 0 {
		return o.value
	}
	return regs[o.reg]
}

// step is one executable instruction writing register dst.
type step struct {
	op     ir.Op
	dst    int
	args   []operand
	callee string
	target *Symbol // bound at link time
}

// code is the executable form of one function. Registers hold the
// parameters first, then one slot per instruction.
type code struct {
	name  string
	arity int
	nregs int
	steps []step
	ret   operand
}

// compileFunction lowers a verified IR definition. Call targets are left
// unbound.
func compileFunction(fn *ir.Function) (*code, error) {
	c := &code{
		name:  fn.Name,
		arity: fn.Arity(),
		nregs: fn.Arity() + len(fn.Body.Instrs),
		steps: make([]step, 0, len(fn.Body.Instrs)),
	}
	regs := make(map[*ir.Instr]int, len(fn.Body.Instrs))

	lower := func(v ir.Value) (operand, error) {
		switch v := v.(type) {
		case *ir.Const:
			return operand{reg: -1, value: v.V}, nil
		case *ir.Param:
			return operand{reg: v.Index}, nil
		case *ir.Instr:
			r, ok := regs[v]
			if !ok {
				return operand{}, fmt.Errorf("%s: %s used before definition", fn.Name, v.Operand())
			}
			return operand{reg: r}, nil
		}
		return operand{}, fmt.Errorf("%s: unsupported operand %T", fn.Name, v)
	}

	for i, in := range fn.Body.Instrs {
		st := step{op: in.Op, dst: fn.Arity() + i, callee: in.Callee}
		if !in.Op.IsBinary() && in.Op != ir.OpCall {
			return nil, fmt.Errorf("%s: unsupported opcode %s", fn.Name, in.Op)
		}
		for _, a := range in.Args {
			o, err := lower(a)
			if err != nil {
				return nil, err
			}
			st.args = append(st.args, o)
		}
		c.steps = append(c.steps, st)
		regs[in] = st.dst
	}

	ret, err := lower(fn.Body.Ret)
	if err != nil {
		return nil, err
	}
	c.ret = ret
	return c, nil
}

// compileUnit lowers every definition of unit, using up to workers
// goroutines. Results keep the unit's definition order.
func compileUnit(ctx context.Context, unit *ir.Module, workers int) ([]*code, error) {
	defs := unit.Definitions()
	out := make([]*code, len(defs))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, fn := range defs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := compileFunction(fn)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// exec carries per-invocation state through nested calls.
type exec struct {
	ctx      context.Context
	depth    int
	maxDepth int
}

func (c *code) run(ex *exec, args []float64) (float64, error) {
	regs := make([]float64, c.nregs)
	copy(regs, args)

	for i := range c.steps {
		st := &c.steps[i]
		if st.op == ir.OpCall {
			vals := make([]float64, len(st.args))
			for j, a := range st.args {
				vals[j] = a.load(regs)
			}
			v, err := st.target.invoke(ex, vals)
			if err != nil {
				return 0, err
			}
			regs[st.dst] = v
			continue
		}
		regs[st.dst] = ir.Apply(st.op, st.args[0].load(regs), st.args[1].load(regs))
	}
	return c.ret.load(regs), nil
}
