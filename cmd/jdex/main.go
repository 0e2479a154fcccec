package main

import (
	"fmt"
	"os"

	"github.com/daimatz/jdex/internal/cmd"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cmd.Version = Version
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jdex:", err)
		os.Exit(1)
	}
}
