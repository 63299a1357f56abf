package main

import (
	"os"

	"github.com/velonis/blueprint/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
