package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mosspay/pkg/app"
)

// main exposes a root-level entry point so operators can simply run `go run mosspay.go`.
func main() {
	logger := log.New(os.Stdout, "[mosspay] ", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, os.Args[1:], logger); err != nil {
		logger.Fatalf("application stopped with error: %v", err)
	}
}
