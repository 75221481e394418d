package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"mixsplit/internal/workflow"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process status. A halted run exits 3
// and a stopped run 2 so scripts can tell them from other errors.
func exitCode(err error) int {
	switch {
	case errors.Is(err, workflow.ErrRunHalted):
		return 3
	case errors.Is(err, errRunStopped):
		return 2
	default:
		return 1
	}
}
