package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dmaynor/agent-watch/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		// ExitCodeError carries its own exit code; skip the "Error:" noise.
		var exitErr cmd.ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
