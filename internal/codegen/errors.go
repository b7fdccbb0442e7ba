package codegen

import (
	"errors"
	"fmt"
)

// Error kinds raised while translating syntax to IR.
var (
	ErrUnknownVariable       = errors.New("unknown variable")
	ErrUnknownFunction       = errors.New("unknown function")
	ErrArgumentCountMismatch = errors.New("argument count mismatch")
	ErrRedefinition          = errors.New("function cannot be redefined")
	ErrFunctionNotFound      = errors.New("function not found")
)

// ArityError reports a call whose argument count differs from the callee's
// parameter count.
type ArityError struct {
	Callee   string
	Expected int
	Actual   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("function `%s` expects %d arguments, passed %d arguments", e.Callee, e.Expected, e.Actual)
}

func (e *ArityError) Unwrap() error { return ErrArgumentCountMismatch }
