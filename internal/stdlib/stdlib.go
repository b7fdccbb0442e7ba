// Package stdlib embeds the prelude linked into every session unless it is
// disabled.
package stdlib

import _ "embed"

// Prelude is the default prelude source.
//
//go:embed prelude.ls
var Prelude string
