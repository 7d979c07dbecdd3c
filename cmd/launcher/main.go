// Command lighthouse-launcher is the container entrypoint for lighthouse
// apps: lighthouse-launcher [--] <command> [args...]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/melih/lighthouse-deploy/internal/launcher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := launcher.Main(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
