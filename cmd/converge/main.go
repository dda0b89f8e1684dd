package main

import (
	"os"

	"github.com/diagx/converge/cmd/converge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
