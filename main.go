// The main package for the books-crawler executable.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/geoffreykithuku/books-crawler/cmd"
)

// main defers all execution to the Cobra CLI, canceling the command
// context on SIGINT or SIGTERM so long-running commands shut down
// cleanly.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
