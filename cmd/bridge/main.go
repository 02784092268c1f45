package main

import (
	"os"

	"github.com/telhawk-systems/telhawk-bridge/internal/cli"
	"github.com/telhawk-systems/telhawk-bridge/internal/output"
)

func main() {
	if err := cli.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}
