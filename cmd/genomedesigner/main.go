// Command genomedesigner serves the genome designer API and runs its
// maintenance tasks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"genomedesigner/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.New().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
