// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package ast defines listscope syntax tree nodes.
package ast

import (
	"fmt"
	"strings"
)

// Expr is the closed set of expression nodes: *Variable and *Call.
// Code generation switches over it exhaustively.
type Expr interface {
	String() string
	exprNode()
}

// Variable is an identifier in expression position. Whether it names a bound
// parameter or spells a numeric literal is decided during code generation.
type Variable struct {
	Name string
}

func (*Variable) exprNode() {}

func (v *Variable) String() string {
	return fmt.Sprintf("Variable(%s)", v.Name)
}

// Call applies Callee to Args.
type Call struct {
	Callee string
	Args   []Expr
}

func (*Call) exprNode() {}

func (c *Call) String() string {
	var sb strings.Builder
	for _, arg := range c.Args {
		sb.WriteString(arg.String())
		sb.WriteByte(',')
	}
	return fmt.Sprintf("CALL(fun: %s, args: [%s])", c.Callee, sb.String())
}

// TopLevel is one entry accepted by the read loop: a *Function (definition or
// anonymous wrapper) or a *Prototype (extern declaration).
type TopLevel interface {
	String() string
	// Name is the function name the entry introduces.
	Name() string
	topLevelNode()
}

// Prototype is a function signature. Every parameter is a double.
type Prototype struct {
	FuncName string
	Params   []string
}

func (*Prototype) topLevelNode() {}

// Name returns the function name.
func (p *Prototype) Name() string { return p.FuncName }

// Arity returns the number of parameters.
func (p *Prototype) Arity() int { return len(p.Params) }

func (p *Prototype) String() string {
	var sb strings.Builder
	for _, param := range p.Params {
		sb.WriteString(param)
		sb.WriteByte(',')
	}
	return fmt.Sprintf("Prototype(name: %s, args [%s])", p.FuncName, sb.String())
}

// Function is a prototype with a body. Anonymous marks the zero-argument
// wrapper synthesized around a bare top-level expression.
type Function struct {
	Proto     *Prototype
	Body      Expr
	Anonymous bool
}

func (*Function) topLevelNode() {}

// Name returns the function name.
func (f *Function) Name() string { return f.Proto.FuncName }

func (f *Function) String() string {
	return fmt.Sprintf("Function(proto: %s\n body: %s)", f.Proto.String(), f.Body.String())
}
