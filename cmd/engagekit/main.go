package main

import (
	"os"

	"github.com/apptentive/engagekit/cmd/engagekit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
