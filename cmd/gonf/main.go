package main

import (
	"os"

	"github.com/mathysgrapotte/gonf/cmd/gonf/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
