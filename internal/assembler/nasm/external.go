// Package nasm provides helpers to assemble the generated boot sector listing
// with the nasm assembler.
package nasm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const assemblerName = "nasm"

// ErrNotInstalled is returned when the assembler can not be found in the search path.
var ErrNotInstalled = errors.New(assemblerName + " is not installed")

// Installed returns whether the external assembler is available.
func Installed() bool {
	_, err := exec.LookPath(executable())
	return err == nil
}

// AssembleUsingExternalApp calls the external assembler to generate a flat
// binary from the given asm file.
func AssembleUsingExternalApp(ctx context.Context, asmFile, outputFile string) error {
	assembler := executable()
	if _, err := exec.LookPath(assembler); err != nil {
		return ErrNotInstalled
	}

	cmd := exec.CommandContext(ctx, assembler, "-f", "bin", "-o", outputFile, asmFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("assembling file: %s: %w", strings.TrimSpace(string(out)), err)
	}

	return nil
}

func executable() string {
	if runtime.GOOS == "windows" {
		return assemblerName + ".exe"
	}
	return assemblerName
}
