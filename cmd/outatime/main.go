// Command outatime restores the contents of a versioned S3 bucket as they
// were at a given point in time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/envato-archive/outatime/errors"
)

func main() {
	opts, err := loadOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "outatime: %v\n", err)
		os.Exit(errors.CodeInvalidConfig.ExitStatus())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = newRootCommand(opts, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "outatime: %v\n", err)
		os.Exit(errors.CodeOf(err).ExitStatus())
	}
}
