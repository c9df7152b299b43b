// Package main implements a boot simulator that executes the boot sector of a disk image
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/bootpack/internal/bootsector"
	"github.com/retroenv/bootpack/internal/cli"
	"github.com/retroenv/bootpack/internal/config"
	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/emulator"
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/bootpack/internal/options"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

var errSimulatedReadFailure = errors.New("simulated read failure")

func main() {
	opts, err := cli.ParseSimulatorFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			config.PrintBanner(logger, "bootsim", opts.Quiet, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Error("Invalid options", log.Err(err))
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	config.PrintBanner(logger, "bootsim", opts.Quiet, version, commit, date)

	if err := simulate(logger, opts, os.Stdout); err != nil {
		logger.Error("Boot simulation failed", log.Err(err))
		os.Exit(1)
	}
}

// simulate boots the disk image in the emulator. The teletype output of the
// boot code and the simulation report are written to w.
func simulate(logger *log.Logger, opts options.Simulator, w io.Writer) error {
	data, err := os.ReadFile(opts.Image)
	if err != nil {
		return fmt.Errorf("reading disk image: %w", err)
	}
	image, err := disk.NewImage(data, disk.Floppy144)
	if err != nil {
		return fmt.Errorf("loading disk image: %w", err)
	}
	if !bootsector.Valid(image.BootSector()) {
		return errors.New("boot sector signature missing")
	}

	fw := machine.NewFirmware(image, opts.Drive, w)
	if opts.FailRead {
		fw.ReadError = errSimulatedReadFailure
	}

	mem := machine.NewMemory()
	cpu := emulator.New(logger, mem, fw, emulator.Options{MaxSteps: opts.MaxSteps})
	layout := machine.DefaultLayout()
	result, err := cpu.Boot(image.BootSector(), layout.Origin, opts.Drive)
	if err != nil {
		return fmt.Errorf("booting image: %w", err)
	}

	if _, err := fmt.Fprintf(w, "\noutcome:      %s\ninstructions: %d\naddresses:    %d\n",
		result.Outcome, result.Steps, result.Addresses); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if result.Outcome != emulator.OutcomeExec {
		return nil
	}

	if _, err := fmt.Fprintf(w, "entry:        %s\n", result.Entry); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if opts.Dump > 0 {
		dump := mem.Slice(result.Entry.Linear(), opts.Dump)
		if _, err := io.WriteString(w, hex.Dump(dump)); err != nil {
			return fmt.Errorf("writing dump: %w", err)
		}
	}
	return nil
}
