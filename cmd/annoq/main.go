package main

import (
	"os"

	"github.com/USCbiostats/annoq-api-v2/internal/version"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(version.String(), args[1:]); err != nil {
		exit(1)
	}
}
