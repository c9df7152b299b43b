// Package verification verifies that the generated output recreates the input payload.
package verification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/retroenv/bootpack/internal/assembler/nasm"
	"github.com/retroenv/bootpack/internal/bootsector"
	"github.com/retroenv/bootpack/internal/decoder"
	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/emulator"
	"github.com/retroenv/bootpack/internal/loader"
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/bootpack/internal/rle"
	"github.com/retroenv/retrogolib/log"
)

// bootDrive is the drive number the image is attached as, the first floppy drive.
const bootDrive = 0x00

// VerifyPacked verifies that the pairs of the packed stream describe as many
// bytes as the payload has and that decoding recreates the exact payload.
func VerifyPacked(logger *log.Logger, payload, packed []byte, key byte) error {
	pairs, streamSize := rle.Parse(packed)
	if size := rle.Size(pairs); size != len(payload) {
		return fmt.Errorf("packed stream describes %d bytes in %d pairs, payload has %d bytes",
			size, len(pairs), len(payload))
	}
	logger.Debug("Packed stream parsed",
		log.Int("pairs", len(pairs)),
		log.Int("stream_size", streamSize))

	decoded := decoder.Decode(packed, key)
	if err := checkBufferEqual(logger, payload, decoded); err != nil {
		return fmt.Errorf("decoded payload mismatch: %w", err)
	}
	return nil
}

// VerifyBoot boots the disk image using the hosted loader and the emulated
// boot sector and verifies that both place the exact payload at the
// destination and transfer control to it.
func VerifyBoot(ctx context.Context, logger *log.Logger, image, payload []byte,
	layout machine.Layout, key byte) error {

	img, err := disk.NewImage(image, disk.Floppy144)
	if err != nil {
		return fmt.Errorf("loading disk image: %w", err)
	}

	if err := verifyHostedBoot(logger, img, payload, layout, key); err != nil {
		return fmt.Errorf("hosted boot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("verification interrupted: %w", err)
	}
	if err := verifyEmulatedBoot(logger, img, payload, layout); err != nil {
		return fmt.Errorf("emulated boot: %w", err)
	}
	return nil
}

// VerifyListing verifies that assembling the NASM listing of the boot sector
// with the external assembler recreates the exact sector.
func VerifyListing(ctx context.Context, logger *log.Logger, sector *bootsector.Sector) error {
	dir, err := os.MkdirTemp("", "bootpack")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	asmFile := filepath.Join(dir, "boot.asm")
	outputFile := filepath.Join(dir, "boot.bin")
	if err := sector.WriteListingFile(asmFile); err != nil {
		return fmt.Errorf("writing listing: %w", err)
	}
	if err := nasm.AssembleUsingExternalApp(ctx, asmFile, outputFile); err != nil {
		return fmt.Errorf("reassembling boot sector using nasm failed: %w", err)
	}

	assembled, err := os.ReadFile(outputFile)
	if err != nil {
		return fmt.Errorf("reading assembled file for comparison: %w", err)
	}
	if err := checkBufferEqual(logger, sector.Bytes(), assembled); err != nil {
		return fmt.Errorf("assembled listing mismatch: %w", err)
	}
	return nil
}

func verifyHostedBoot(logger *log.Logger, img *disk.Image, payload []byte, layout machine.Layout, key byte) error {
	mem := machine.NewMemory()
	cfg := loader.Config{
		Layout: layout,
		Key:    key,
	}
	ldr, err := loader.New(logger, cfg, mem, machine.NewFirmware(img, bootDrive, nil))
	if err != nil {
		return fmt.Errorf("creating loader: %w", err)
	}

	result := ldr.Boot(bootDrive)
	if result.State != loader.StateExec {
		return fmt.Errorf("boot ended in state %s: %w", result.State, result.Err)
	}
	return checkDestination(logger, mem, layout, payload)
}

func verifyEmulatedBoot(logger *log.Logger, img *disk.Image, payload []byte, layout machine.Layout) error {
	mem := machine.NewMemory()
	cpu := emulator.New(logger, mem, machine.NewFirmware(img, bootDrive, nil), emulator.DefaultOptions())

	result, err := cpu.Boot(img.BootSector(), layout.Origin, bootDrive)
	if err != nil {
		return fmt.Errorf("executing boot sector: %w", err)
	}
	if result.Outcome != emulator.OutcomeExec {
		return fmt.Errorf("boot sector %s after %d instructions", result.Outcome, result.Steps)
	}
	if result.Entry != layout.Destination {
		return fmt.Errorf("entry point mismatch, expected %s but got %s", layout.Destination, result.Entry)
	}

	logger.Debug("Emulated boot finished",
		log.Int("instructions", result.Steps),
		log.Stringer("entry", result.Entry))
	return checkDestination(logger, mem, layout, payload)
}

func checkDestination(logger *log.Logger, mem *machine.Memory, layout machine.Layout, payload []byte) error {
	decoded := mem.Slice(layout.Destination.Linear(), len(payload))
	if err := checkBufferEqual(logger, payload, decoded); err != nil {
		return fmt.Errorf("destination mismatch: %w", err)
	}
	return nil
}

func checkBufferEqual(logger *log.Logger, input, output []byte) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs < 10 {
			logger.Error("Offset mismatch",
				log.Hex("offset", i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d offset mismatches", diffs)
}
