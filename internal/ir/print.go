package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes the textual form of m to w.
func Fprint(w io.Writer, m *Module) error {
	_, err := io.WriteString(w, m.String())
	return err
}

func (m *Module) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; ModuleID = '%s'\n", m.Name())
	for _, fn := range m.funcs {
		sb.WriteByte('\n')
		sb.WriteString(fn.String())
	}
	return sb.String()
}

func (f *Function) String() string {
	var sb strings.Builder
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = "double " + p.Operand()
	}
	sig := fmt.Sprintf("double @%s(%s)", f.Name, strings.Join(params, ", "))

	if f.Body == nil {
		fmt.Fprintf(&sb, "declare %s\n", sig)
		return sb.String()
	}

	fmt.Fprintf(&sb, "define %s {\n%s:\n", sig, f.Body.Label)
	for _, in := range f.Body.Instrs {
		fmt.Fprintf(&sb, "  %s\n", in.String())
	}
	if f.Body.Ret != nil {
		fmt.Fprintf(&sb, "  ret double %s\n", f.Body.Ret.Operand())
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (i *Instr) String() string {
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = a.Operand()
	}
	if i.Op == OpCall {
		typed := make([]string, len(args))
		for n, a := range args {
			typed[n] = "double " + a
		}
		return fmt.Sprintf("%s = call double @%s(%s)", i.Operand(), i.Callee, strings.Join(typed, ", "))
	}
	return fmt.Sprintf("%s = %s double %s", i.Operand(), i.Op, strings.Join(args, ", "))
}
