// Package main is the print agent entry point. It runs as a Windows
// service or in the foreground and also offers maintenance commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	workererrors "github.com/adcondev/print-agent/internal/worker/errors"
)

// Exit codes
const (
	exitFailure = 1
	exitStartup = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	if workererrors.Is(err, workererrors.CodeStartup) {
		return exitStartup
	}
	return exitFailure
}
