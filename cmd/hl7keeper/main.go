package main

import (
	"os"

	"github.com/solatis/hl7keeper/cmd/hl7keeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
