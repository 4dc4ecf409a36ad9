package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mashiike/bucketnotify"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	var cli bucketnotify.CLI
	exitCode := cli.Run(ctx)
	cancel()
	os.Exit(exitCode)
}
