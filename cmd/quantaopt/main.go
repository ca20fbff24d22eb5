package main

import (
	"fmt"
	"os"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
