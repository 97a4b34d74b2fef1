package main

import (
	"os"

	"spinchain/cmd/spinchain/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
