package main

import (
	"os"

	"github.com/rustyeddy/pilot/cmd/pilot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
