// Package main implements a packer that prepares a payload for a two stage x86 boot loader
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/bootpack/internal/cli"
	"github.com/retroenv/bootpack/internal/config"
	"github.com/retroenv/bootpack/internal/pipeline"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, packer, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			config.PrintBanner(logger, "bootpack", opts.Quiet, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Error("Invalid options", log.Err(err))
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	config.PrintBanner(logger, "bootpack", opts.Quiet, version, commit, date)

	result, err := pipeline.New(logger).Execute(ctx, opts, packer)
	if err != nil {
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
		} else {
			logger.Error("Packing failed", log.Err(err))
		}
		os.Exit(1)
	}

	if err := result.WriteSummary(os.Stdout); err != nil {
		logger.Error("Writing summary failed", log.Err(err))
		os.Exit(1)
	}
}
