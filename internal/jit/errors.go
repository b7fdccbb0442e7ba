package jit

import "errors"

// Error kinds raised by the execution session.
var (
	ErrLink          = errors.New("link error")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrCallDepth     = errors.New("maximum call depth exceeded")
)
