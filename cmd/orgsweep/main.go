package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/scope"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitCellsFailed = 3
)

func main() {
	ctx := setupSignalHandler()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, scope.ErrScopeSpecification), errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errCellsFailed):
		return exitCellsFailed
	default:
		return exitError
	}
}

// setupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
// In-flight cells see the cancellation and the report is still written.
// A second signal exits immediately.
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel(errors.New("interrupted by " + sig.String()))

		sig = <-sigCh
		slog.Warn("received second shutdown signal, forcing exit", "signal", sig.String())
		os.Exit(exitError)
	}()

	return ctx
}
