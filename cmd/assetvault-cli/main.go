package main

import (
	"fmt"
	"os"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
