// Command typegraph analyses the type graphs of DWARF debug info and CUE
// type-graph descriptions.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/typegraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures; anything else is a usage error.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
