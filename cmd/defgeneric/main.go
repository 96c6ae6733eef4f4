// Command defgeneric compiles, runs and inspects generic function
// definitions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/defgeneric/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
