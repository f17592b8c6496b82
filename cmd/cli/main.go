package main

import (
	"os"

	"github.com/davidmoltin/efiling-workflows/cmd/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
