package main

import (
	"fmt"
	"os"

	"github.com/git-pkgs/watch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "npmwatch:", err)
		os.Exit(1)
	}
}
