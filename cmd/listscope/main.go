// Command listscope is the listscope compiler and REPL.
package main

import (
	"os"

	"github.com/yotto3s/listscope/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
