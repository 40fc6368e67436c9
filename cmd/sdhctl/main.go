// Command sdhctl is the command-line client of sdh-server.
package main

import (
	"fmt"
	"os"

	"github.com/signalsfoundry/sdh-provisioner/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
