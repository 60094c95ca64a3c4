package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/points-ledger-engine/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(cli.OpenPostgres).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pointsctl: %s\n", err)
		os.Exit(1)
	}
}
