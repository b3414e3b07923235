package main

import (
	"os"

	"github.com/quantmill/tdxscan/cmd/tdxscan/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
