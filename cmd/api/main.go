package main

import (
	"fmt"
	"os"

	"github.com/spec-kit/feedback-service/cmd/api/cli"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
