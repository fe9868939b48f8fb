package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var buildVersion = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCLI(os.Stdout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		c.logger().Info("Received exit signal, shutting down...")
		cancel()
	}()

	if err := c.rootCommand().ExecuteContext(ctx); err != nil {
		c.reportError(ctx, err)
		os.Exit(1)
	}
}
