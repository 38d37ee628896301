// Command convoy deploys the apps declared in a manifest to Marathon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/convoy/internal/core/manifest"
	"github.com/artpar/convoy/internal/core/registry"
	"github.com/artpar/convoy/internal/core/validation"
	"github.com/artpar/convoy/internal/shell/buildref"
	"github.com/artpar/convoy/internal/shell/reconcile"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitDeployFailed = 2
	ExitConflict     = 3
	ExitTimeout      = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, validation.ErrConfigurationInvalid),
		errors.Is(err, manifest.ErrEmptyInput),
		errors.Is(err, manifest.ErrInvalidYAML),
		errors.Is(err, registry.ErrNotFound):
		return ExitConfigError
	case errors.Is(err, reconcile.ErrConflict):
		return ExitConflict
	case errors.Is(err, reconcile.ErrRetryExceeded):
		return ExitTimeout
	case errors.Is(err, reconcile.ErrDeployRejected),
		errors.Is(err, reconcile.ErrUnknownState),
		errors.Is(err, reconcile.ErrUnreachable),
		errors.Is(err, buildref.ErrVersionUnresolved),
		errors.Is(err, context.Canceled):
		return ExitDeployFailed
	default:
		return ExitConfigError
	}
}
