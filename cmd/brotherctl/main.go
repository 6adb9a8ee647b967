package main

import (
	"os"

	"github.com/adcondev/brother-daemon/cmd/brotherctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
