package ir

import (
	"fmt"
	"math"
)

// Apply computes a binary opcode on constants with the same semantics the
// executable form uses.
func Apply(op Op, a, b float64) float64 {
	switch op {
	case OpFAdd:
		return a + b
	case OpFSub:
		return a - b
	case OpFMul:
		return a * b
	case OpFDiv:
		return a / b
	case OpFCmpULT:
		if !(a >= b) {
			return 1
		}
		return 0
	}
	panic(fmt.Sprintf("ir: cannot apply %s", op))
}

// Pass is a function-local transformation. Run reports whether it changed fn.
type Pass interface {
	Name() string
	Run(fn *Function) bool
}

// Pipeline runs a fixed pass sequence over single functions and counts how
// often each pass changed something.
type Pipeline struct {
	passes []Pass
	stats  map[string]int
}

// NewPipeline returns a pipeline running passes in order.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes, stats: make(map[string]int)}
}

// DefaultPipeline returns instruction simplification, reassociation,
// redundancy elimination and control-flow cleanup, in that order.
func DefaultPipeline() *Pipeline {
	return NewPipeline(InstSimplify{}, Reassociate{}, GVN{}, SimplifyCFG{})
}

// Run applies every pass once to fn. Declarations are left alone.
func (p *Pipeline) Run(fn *Function) {
	if fn.Body == nil {
		return
	}
	for _, pass := range p.passes {
		if pass.Run(fn) {
			p.stats[pass.Name()]++
		}
	}
}

// Stats returns the per-pass change counts.
func (p *Pipeline) Stats() map[string]int {
	out := make(map[string]int, len(p.stats))
	for k, v := range p.stats {
		out[k] = v
	}
	return out
}

// InstSimplify folds constant operations and removes IEEE-exact identities
// (x*1, x/1, x-0, x+-0).
type InstSimplify struct{}

func (InstSimplify) Name() string { return "instsimplify" }

func (InstSimplify) Run(fn *Function) bool {
	changed := false
	kept := fn.Body.Instrs[:0]
	for _, in := range fn.Body.Instrs {
		if repl := simplify(in); repl != nil {
			fn.replaceAllUses(in, repl)
			changed = true
			continue
		}
		kept = append(kept, in)
	}
	fn.Body.Instrs = kept
	return changed
}

func simplify(in *Instr) Value {
	if !in.Op.IsBinary() {
		return nil
	}
	lhs, rhs := in.Args[0], in.Args[1]
	lc, lok := lhs.(*Const)
	rc, rok := rhs.(*Const)
	if lok && rok {
		return &Const{V: Apply(in.Op, lc.V, rc.V)}
	}
	switch in.Op {
	case OpFMul:
		if rok && rc.V == 1 {
			return lhs
		}
		if lok && lc.V == 1 {
			return rhs
		}
	case OpFDiv:
		if rok && rc.V == 1 {
			return lhs
		}
	case OpFSub:
		if rok && rc.V == 0 && !math.Signbit(rc.V) {
			return lhs
		}
	case OpFAdd:
		if rok && rc.V == 0 && math.Signbit(rc.V) {
			return lhs
		}
		if lok && lc.V == 0 && math.Signbit(lc.V) {
			return rhs
		}
	}
	return nil
}

// Reassociate puts the operands of commutative instructions in canonical
// order: lower rank first, constants last. Floating-point operations are
// not regrouped.
type Reassociate struct{}

func (Reassociate) Name() string { return "reassociate" }

func (Reassociate) Run(fn *Function) bool {
	changed := false
	for _, in := range fn.Body.Instrs {
		if !in.Op.IsCommutative() {
			continue
		}
		if rank(fn, in.Args[0]) > rank(fn, in.Args[1]) {
			in.Args[0], in.Args[1] = in.Args[1], in.Args[0]
			changed = true
		}
	}
	return changed
}

// rank orders values: parameters by position, then instructions by
// definition order, constants after everything.
func rank(fn *Function, v Value) int {
	switch v := v.(type) {
	case *Param:
		return v.Index
	case *Instr:
		return len(fn.Params) + v.ID
	}
	return math.MaxInt
}

// GVN replaces an instruction with an earlier one computing the same value.
// Calls are never merged.
type GVN struct{}

func (GVN) Name() string { return "gvn" }

func (GVN) Run(fn *Function) bool {
	changed := false
	seen := make(map[string]*Instr)
	kept := fn.Body.Instrs[:0]
	for _, in := range fn.Body.Instrs {
		if in.HasSideEffects() {
			kept = append(kept, in)
			continue
		}
		key := valueKey(in)
		if prev, ok := seen[key]; ok {
			fn.replaceAllUses(in, prev)
			changed = true
			continue
		}
		seen[key] = in
		kept = append(kept, in)
	}
	fn.Body.Instrs = kept
	return changed
}

func valueKey(in *Instr) string {
	key := in.Op.String()
	for _, a := range in.Args {
		switch a := a.(type) {
		case *Const:
			key += fmt.Sprintf(" c%x", math.Float64bits(a.V))
		case *Param:
			key += fmt.Sprintf(" p%d", a.Index)
		case *Instr:
			key += fmt.Sprintf(" t%d", a.ID)
		}
	}
	return key
}

// SimplifyCFG tidies the entry block: it drops side-effect-free
// instructions whose results are never used and renumbers the survivors
// densely. Functions have a single block, so no edges need merging.
type SimplifyCFG struct{}

func (SimplifyCFG) Name() string { return "simplifycfg" }

func (SimplifyCFG) Run(fn *Function) bool {
	changed := false
	for {
		uses := fn.uses()
		kept := fn.Body.Instrs[:0]
		removed := false
		for _, in := range fn.Body.Instrs {
			if uses[in] == 0 && !in.HasSideEffects() {
				removed = true
				continue
			}
			kept = append(kept, in)
		}
		fn.Body.Instrs = kept
		if !removed {
			break
		}
		changed = true
	}

	for i, in := range fn.Body.Instrs {
		if in.ID != i {
			in.ID = i
			changed = true
		}
	}
	fn.nextID = len(fn.Body.Instrs)
	return changed
}
