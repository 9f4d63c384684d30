package main

import (
	"os"

	"github.com/railops/rakeplan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
