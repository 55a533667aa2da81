// MSSim - virtual tandem mass spectrometry acquisition simulator
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/MSSim/cmd/mssim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
