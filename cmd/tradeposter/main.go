package main

import (
	"os"

	"github.com/rustyeddy/tradeposter/cmd/tradeposter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
