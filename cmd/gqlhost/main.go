// Command gqlhost runs GraphQL operations against the mail engine, either
// once from the command line or behind an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gqlhost/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
