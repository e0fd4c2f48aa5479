// Command lnharness runs payment-channel integration scenarios against a
// regtest driver.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/lnharness/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil && !isReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}

// isReported reports whether the command already wrote err to its output.
func isReported(err error) bool {
	var exitErr *cli.ExitError
	return errors.As(err, &exitErr)
}
