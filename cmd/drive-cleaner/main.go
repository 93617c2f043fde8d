package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // TIME_ZONE must resolve on hosts without zoneinfo

	"github.com/Yulikepython/drive-cleaner/internal/cli"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx, version)
}
