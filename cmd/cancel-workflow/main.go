package main

import (
	"fmt"
	"os"

	"github.com/dwsmith1983/cancel-workflow/internal/commands"
)

var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
