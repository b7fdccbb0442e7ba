package codegen

import (
	"github.com/yotto3s/listscope/internal/ast"
	"github.com/yotto3s/listscope/internal/ir"
)

// Builtin operators, each a two-parameter function over x and y.
var builtinOps = []struct {
	name string
	op   ir.Op
}{
	{"+", ir.OpFAdd},
	{"-", ir.OpFSub},
	{"*", ir.OpFMul},
	{"/", ir.OpFDiv},
	{"<", ir.OpFCmpULT},
}

// BuiltinNames returns the operator names installed by InstallBuiltins.
func BuiltinNames() []string {
	names := make([]string, len(builtinOps))
	for i, b := range builtinOps {
		names[i] = b.name
	}
	return names
}

// InstallBuiltins defines the arithmetic and comparison operators in the
// current unit through the ordinary definition path, so they are recorded
// in the registry and protected against redefinition like user functions.
func (e *Environment) InstallBuiltins() error {
	for _, bi := range builtinOps {
		op := bi.op
		proto := &ast.Prototype{FuncName: bi.name, Params: []string{"x", "y"}}
		_, err := e.genFunction(proto, false, func(b *ir.Builder, scope Scope) (ir.Value, error) {
			return b.Binary(op, scope["x"], scope["y"]), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
