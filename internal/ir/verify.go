package ir

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned for malformed IR.
var ErrInvalid = errors.New("invalid IR")

// VerifyFunction checks that fn is well formed within m: every operand is a
// constant, one of fn's own parameters or an earlier instruction; every call
// names a function of m with matching arity; the block is terminated.
// Declarations are always valid.
func VerifyFunction(m *Module, fn *Function) error {
	if fn.Body == nil {
		return nil
	}
	defined := make(map[*Instr]bool, len(fn.Body.Instrs))
	check := func(v Value) error {
		switch v := v.(type) {
		case *Const:
			return nil
		case *Param:
			if v.Index < 0 || v.Index >= len(fn.Params) || fn.Params[v.Index] != v {
				return fmt.Errorf("%w: %s: foreign parameter %s", ErrInvalid, fn.Name, v.Operand())
			}
			return nil
		case *Instr:
			if !defined[v] {
				return fmt.Errorf("%w: %s: %s used before definition", ErrInvalid, fn.Name, v.Operand())
			}
			return nil
		case nil:
			return fmt.Errorf("%w: %s: nil operand", ErrInvalid, fn.Name)
		}
		return fmt.Errorf("%w: %s: unknown operand %T", ErrInvalid, fn.Name, v)
	}

	for _, in := range fn.Body.Instrs {
		switch {
		case in.Op.IsBinary():
			if len(in.Args) != 2 {
				return fmt.Errorf("%w: %s: %s takes 2 operands, has %d", ErrInvalid, fn.Name, in.Op, len(in.Args))
			}
		case in.Op == OpCall:
			callee := m.Function(in.Callee)
			if callee == nil {
				return fmt.Errorf("%w: %s: call to undeclared @%s", ErrInvalid, fn.Name, in.Callee)
			}
			if callee.Arity() != len(in.Args) {
				return fmt.Errorf("%w: %s: call to @%s with %d operands, expects %d",
					ErrInvalid, fn.Name, in.Callee, len(in.Args), callee.Arity())
			}
		default:
			return fmt.Errorf("%w: %s: unknown opcode %s", ErrInvalid, fn.Name, in.Op)
		}
		for _, a := range in.Args {
			if err := check(a); err != nil {
				return err
			}
		}
		if defined[in] {
			return fmt.Errorf("%w: %s: %s emitted twice", ErrInvalid, fn.Name, in.Operand())
		}
		defined[in] = true
	}

	if fn.Body.Ret == nil {
		return fmt.Errorf("%w: %s: block %s has no terminator", ErrInvalid, fn.Name, fn.Body.Label)
	}
	return check(fn.Body.Ret)
}

// Verify checks every function of m.
func Verify(m *Module) error {
	var errs []error
	for _, fn := range m.funcs {
		if err := VerifyFunction(m, fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
