package main

import (
	"os"

	"github.com/pingo-core/pingo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
