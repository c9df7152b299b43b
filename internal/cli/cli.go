// Package cli handles command line interface logic
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/retroenv/bootpack/internal/emulator"
	"github.com/retroenv/bootpack/internal/obfuscate"
	"github.com/retroenv/bootpack/internal/options"
	"github.com/xyproto/env/v2"
)

// Environment variables that provide the flag defaults.
const (
	EnvKey   = "BOOTPACK_KEY"
	EnvDebug = "BOOTPACK_DEBUG"
	EnvQuiet = "BOOTPACK_QUIET"
)

const (
	packerUsage    = "usage: bootpack [options] <payload file> <packed output file>"
	simulatorUsage = "usage: bootsim [options] <disk image>"
)

// ParseFlags parses command line flags and returns program and packer options
func ParseFlags() (options.Program, options.Packer, error) {
	flags := newFlagSet()
	var opts options.Program
	packer := options.NewPacker()
	var key string
	readOptionFlags(flags, &opts)
	readPackerOptionFlags(flags, &packer, &key)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil {
		return opts, packer, &UsageError{flags: flags, usage: packerUsage, msg: err.Error()}
	}
	if err := validateArgs(flags, packerUsage, args); err != nil {
		return opts, packer, err
	}
	if len(args) != 2 {
		return opts, packer, &UsageError{flags: flags, usage: packerUsage}
	}
	opts.Input = args[0]
	opts.Output = args[1]

	packer.Key, err = ParseByte(key)
	if err != nil {
		return opts, packer, fmt.Errorf("invalid key: %w", err)
	}

	return opts, packer, nil
}

// ParseSimulatorFlags parses command line flags of the boot simulator.
func ParseSimulatorFlags() (options.Simulator, error) {
	flags := newFlagSet()
	var opts options.Simulator
	var drive string
	flags.StringVar(&drive, "drive", "0x00", "BIOS drive number the image is attached as, 0x80 for a hard disk")
	flags.IntVar(&opts.Dump, "dump", 0, "number of decoded bytes at the entry point to dump")
	flags.BoolVar(&opts.FailRead, "fail-read", false, "simulate a failing disk read")
	flags.IntVar(&opts.MaxSteps, "steps", emulator.DefaultOptions().MaxSteps, "maximum number of instructions to execute")
	flags.BoolVar(&opts.Debug, "debug", env.Bool(EnvDebug), "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", env.Bool(EnvQuiet), "perform operations quietly")

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil {
		return opts, &UsageError{flags: flags, usage: simulatorUsage, msg: err.Error()}
	}
	if err := validateArgs(flags, simulatorUsage, args); err != nil {
		return opts, err
	}
	if len(args) != 1 {
		return opts, &UsageError{flags: flags, usage: simulatorUsage}
	}
	opts.Image = args[0]

	opts.Drive, err = ParseByte(drive)
	if err != nil {
		return opts, fmt.Errorf("invalid drive: %w", err)
	}
	if opts.Dump < 0 {
		return opts, fmt.Errorf("invalid dump size %d", opts.Dump)
	}
	if opts.MaxSteps <= 0 {
		return opts, fmt.Errorf("invalid step limit %d", opts.MaxSteps)
	}

	return opts, nil
}

// ParseByte parses a decimal or 0x prefixed hexadecimal byte value.
func ParseByte(s string) (byte, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	value, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("parsing byte value '%s': %w", s, err)
	}
	return byte(value), nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	usage string
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	if e.msg != "" {
		fmt.Printf("%s\n\n", e.msg)
	}
	fmt.Printf("%s\n\n", e.usage)
	e.flags.SetOutput(os.Stdout)
	e.flags.PrintDefaults()
	fmt.Println()
}

// newFlagSet returns a flag set that reports errors to the caller instead of
// printing them, so that usage output is handled in one place.
func newFlagSet() *flag.FlagSet {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	return flags
}

// validateArgs checks if arguments are in correct order
func validateArgs(flags *flag.FlagSet, usage string, args []string) error {
	for i, arg := range args {
		if i > 0 && len(arg) > 1 && arg[0] == '-' {
			return &UsageError{
				flags: flags,
				usage: usage,
				msg:   fmt.Sprintf("Potential argument %s found after file names, please pass all options before the file names", arg),
			}
		}
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Image, "image", "", "name of the bootable disk image to write, containing boot sector and packed payload")
	flags.StringVar(&opts.Listing, "listing", "", "name of the NASM listing file of the generated boot sector")
	flags.BoolVar(&opts.Floppy, "floppy", false, "pad the disk image to the size of a 1.44MB floppy disk")
	flags.BoolVar(&opts.DebugChars, "debug-chars", false, "print a character at every stage of the boot sequence")
	flags.BoolVar(&opts.Verify, "verify", false, "verify the packed output by decoding it and booting it in the emulator")
	flags.BoolVar(&opts.Debug, "debug", env.Bool(EnvDebug), "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", env.Bool(EnvQuiet), "perform operations quietly")
}

func readPackerOptionFlags(flags *flag.FlagSet, opts *options.Packer, key *string) {
	defaultKey := fmt.Sprintf("0x%02x", obfuscate.DefaultKey)
	flags.StringVar(key, "key", env.Str(EnvKey, defaultKey), "obfuscation key as decimal or 0x prefixed hex byte")
	flags.BoolVar(&opts.NoTerminator, "no-terminator", false, "do not append an explicit end marker, rely on the zero padding")
}
