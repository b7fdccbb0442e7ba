package codegen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yotto3s/listscope/internal/ast"
	"github.com/yotto3s/listscope/internal/ir"
)

// Scope binds parameter names to values for the function being generated.
// A new Scope is built for every function; scopes never nest.
type Scope map[string]ir.Value

func newScope(fn *ir.Function) Scope {
	s := make(Scope, len(fn.Params))
	for _, p := range fn.Params {
		s[p.Name] = p
	}
	return s
}

func (e *Environment) genExpr(b *ir.Builder, scope Scope, x ast.Expr) (ir.Value, error) {
	switch x := x.(type) {
	case *ast.Variable:
		if v, ok := scope[x.Name]; ok {
			return v, nil
		}
		if n, ok := parseNumber(x.Name); ok {
			return b.Const(n), nil
		}
		return nil, fmt.Errorf("%w: `%s`", ErrUnknownVariable, x.Name)

	case *ast.Call:
		callee, err := e.Resolve(x.Callee)
		if err != nil {
			if errors.Is(err, ErrFunctionNotFound) {
				return nil, fmt.Errorf("%w: `%s`", ErrUnknownFunction, x.Callee)
			}
			return nil, err
		}
		if callee.Arity() != len(x.Args) {
			return nil, &ArityError{Callee: x.Callee, Expected: callee.Arity(), Actual: len(x.Args)}
		}
		args := make([]ir.Value, len(x.Args))
		for i, a := range x.Args {
			v, err := e.genExpr(b, scope, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return b.Call(callee, args), nil
	}
	return nil, fmt.Errorf("codegen: unexpected expression %T", x)
}

// parseNumber accepts a token only if the whole of it spells a finite
// decimal floating-point number. Go-only spellings such as digit separators
// and hex floats are not numbers here.
func parseNumber(s string) (float64, bool) {
	if strings.Trim(s, "0123456789+-.eE") != "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}
