package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mosspay/pkg/app"
)

// main acts as a thin adapter so process managers can keep using cmd/server.
func main() {
	logger := log.New(os.Stdout, "[mosspay] ", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, os.Args[1:], logger); err != nil {
		logger.Fatalf("application stopped with error: %v", err)
	}
}
