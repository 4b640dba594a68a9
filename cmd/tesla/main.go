package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tesla-sdk/cmd/tesla/cmd"
)

func main() {
	// interrupt cancels whatever request is in flight
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
