// Package pipeline orchestrates the packing workflow stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/bootpack/internal/assembler/nasm"
	"github.com/retroenv/bootpack/internal/bootsector"
	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/encoder"
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/bootpack/internal/options"
	"github.com/retroenv/bootpack/internal/verification"
	"github.com/retroenv/retrogolib/log"
)

// ErrPayloadTooLarge is returned when the payload does not fit the boot layout.
var ErrPayloadTooLarge = errors.New("payload too large")

// Pipeline orchestrates the complete packing workflow.
type Pipeline struct {
	logger *log.Logger
}

// Result describes the generated output.
type Result struct {
	Encoding *encoder.Result
	Sector   *bootsector.Sector
	Layout   machine.Layout // layout with the sector count of the packed payload
	Image    []byte         // disk image, only set if requested or verified
}

// New creates a new packing pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger: logger,
	}
}

// Execute runs the complete packing pipeline.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, packer options.Packer) (*Result, error) {
	file, err := os.Open(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("reading input file info: %w", err)
	}

	return p.ExecuteReader(ctx, file, info.Size(), opts, packer)
}

// ExecuteReader runs the packing pipeline with a payload of the declared size
// read from the reader. The output files are only created after the payload
// was read and encoded successfully.
func (p *Pipeline) ExecuteReader(ctx context.Context, reader io.Reader, size int64, opts options.Program,
	packer options.Packer) (*Result, error) {

	p.printInfo(opts, packer, size)

	layout := packer.Layout
	if size > int64(layout.DestinationSize) {
		return nil, fmt.Errorf("%w: %d bytes exceed the destination size of %d bytes",
			ErrPayloadTooLarge, size, layout.DestinationSize)
	}

	encoding, err := encoder.EncodeReader(reader, size, encoder.Options{
		Key:          packer.Key,
		NoTerminator: packer.NoTerminator,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	result, err := p.build(encoding, packer, opts.DebugChars)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("packing interrupted: %w", err)
	}

	if err := writeFile(opts.Output, result.Encoding.Packed); err != nil {
		return nil, fmt.Errorf("writing packed output: %w", err)
	}
	p.logger.Debug("Packed output written", log.String("file", opts.Output))

	if opts.Image != "" || opts.Verify {
		result.Image, err = disk.Assemble(result.Sector.Bytes(), result.Encoding.Packed, opts.Floppy)
		if err != nil {
			return nil, fmt.Errorf("assembling disk image: %w", err)
		}
	}
	if opts.Image != "" {
		if err := writeFile(opts.Image, result.Image); err != nil {
			return nil, fmt.Errorf("writing disk image: %w", err)
		}
		p.logger.Debug("Disk image written", log.String("file", opts.Image), log.Int("size", len(result.Image)))
	}
	if opts.Listing != "" {
		if err := result.Sector.WriteListingFile(opts.Listing); err != nil {
			return nil, fmt.Errorf("writing listing: %w", err)
		}
	}

	if opts.Verify {
		if err := p.verify(ctx, packer, result); err != nil {
			return nil, fmt.Errorf("verification failed: %w", err)
		}
		p.logger.Info("Verification successful")
	}

	return result, nil
}

// build generates the boot sector matching the encoded payload.
func (p *Pipeline) build(encoding *encoder.Result, packer options.Packer, debugChars bool) (*Result, error) {
	if encoding.Sectors > machine.MaxSectorCount {
		return nil, fmt.Errorf("%w: packed payload needs %d sectors, maximum is %d",
			ErrPayloadTooLarge, encoding.Sectors, machine.MaxSectorCount)
	}

	layout := packer.Layout
	layout.SectorCount = uint8(encoding.Sectors)
	sector, err := bootsector.Build(bootsector.Options{
		Layout:     layout,
		Key:        packer.Key,
		DebugChars: debugChars,
	})
	if err != nil {
		return nil, fmt.Errorf("building boot sector: %w", err)
	}

	p.logger.Debug("Boot sector generated",
		log.Int("code_size", sector.CodeSize()),
		log.Int("free", sector.Free()))

	return &Result{
		Encoding: encoding,
		Sector:   sector,
		Layout:   layout,
	}, nil
}

func (p *Pipeline) verify(ctx context.Context, packer options.Packer, result *Result) error {
	payload := result.Encoding.Payload
	if err := verification.VerifyPacked(p.logger, payload, result.Encoding.Packed, packer.Key); err != nil {
		return err
	}
	if err := verification.VerifyBoot(ctx, p.logger, result.Image, payload, result.Layout, packer.Key); err != nil {
		return err
	}

	if !nasm.Installed() {
		p.logger.Debug("Skipping listing verification, nasm is not installed")
		return nil
	}
	return verification.VerifyListing(ctx, p.logger, result.Sector)
}

// printInfo prints information about the payload being processed.
func (p *Pipeline) printInfo(opts options.Program, packer options.Packer, size int64) {
	if opts.Quiet {
		return
	}

	p.logger.Info("Packing payload",
		log.String("file", opts.Input),
		log.Int64("size", size),
		log.Hex("key", packer.Key),
	)
	if packer.NoTerminator {
		p.logger.Warn("Packing without end marker, decoding relies on the zero padding of the sector")
	}
}

// WriteSummary writes the packing statistics.
func (r *Result) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w, "original size:   %d bytes\n"+
		"compressed size: %d bytes\n"+
		"ratio:           %.2f%%\n"+
		"sectors:         %d\n",
		r.Encoding.OriginalSize, r.Encoding.EncodedSize, r.Encoding.Ratio()*100, r.Encoding.Sectors)
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

func writeFile(name string, data []byte) error {
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing file '%s': %w", name, err)
	}
	return nil
}
