package main

import (
	"fmt"
	"os"

	"github.com/alxayo/mediabroker/cmd/mediabrokerd/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.Version = version
	commands.Commit = commit

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
