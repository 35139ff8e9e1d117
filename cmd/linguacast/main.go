package main

import (
	"os"

	"github.com/linguacast/linguacast/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
