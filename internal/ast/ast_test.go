package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRendering(t *testing.T) {
	square := &Function{
		Proto: &Prototype{FuncName: "square", Params: []string{"x"}},
		Body: &Call{Callee: "*", Args: []Expr{
			&Variable{Name: "x"},
			&Variable{Name: "x"},
		}},
	}

	tests := []struct {
		name string
		node interface{ String() string }
		want string
	}{
		{"variable", &Variable{Name: "x"}, "Variable(x)"},
		{"call no args", &Call{Callee: "f"}, "CALL(fun: f, args: [])"},
		{"call", square.Body, "CALL(fun: *, args: [Variable(x),Variable(x),])"},
		{"prototype", &Prototype{FuncName: "f", Params: []string{"a", "b"}}, "Prototype(name: f, args [a,b,])"},
		{"prototype no params", &Prototype{FuncName: "g"}, "Prototype(name: g, args [])"},
		{
			"function", square,
			"Function(proto: Prototype(name: square, args [x,])\n body: CALL(fun: *, args: [Variable(x),Variable(x),]))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.String())
		})
	}
}

func TestTopLevelName(t *testing.T) {
	proto := &Prototype{FuncName: "sin", Params: []string{"x"}}
	fn := &Function{Proto: proto, Body: &Variable{Name: "x"}}

	var entries = []TopLevel{proto, fn}
	for _, e := range entries {
		assert.Equal(t, "sin", e.Name())
	}
	assert.Equal(t, 1, proto.Arity())
}
