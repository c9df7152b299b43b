// Package bootsector generates the first stage boot loader as 16-bit real-mode
// x86 machine code. The generated sector sets up segments and stack, reads the
// packed payload sectors using the BIOS, decodes them into the destination
// region and jumps to the decoded payload.
//
// The memory layout, obfuscation key and sector count are baked into the
// code. Besides the binary sector, a NASM compatible source listing of the
// same code can be written.
package bootsector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/machine"
)

const (
	// SignatureOffset is the offset of the boot signature in the sector.
	SignatureOffset = disk.SectorSize - 2
	// Signature marks a sector as bootable.
	Signature uint16 = 0xaa55
	// MaxCodeSize is the space available for code in front of the signature.
	MaxCodeSize = SignatureOffset
)

var (
	// ErrCodeTooLarge is returned when the generated code does not fit the sector.
	ErrCodeTooLarge = errors.New("boot sector code too large")
	// ErrJumpRange is returned when a short jump can not reach its target.
	ErrJumpRange = errors.New("jump target out of range")
)

// Options controls the code generation.
type Options struct {
	Layout     machine.Layout
	Key        byte
	DebugChars bool // print a character at every stage of the boot sequence
}

// Sector is a generated boot sector.
type Sector struct {
	options  Options
	program  *program
	data     [disk.SectorSize]byte
	codeSize int
}

// Build generates the boot sector for the given options.
func Build(opts Options) (*Sector, error) {
	if err := opts.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	p := newProgram(uint16(opts.Layout.Origin.Linear()))
	generate(p, opts)

	code, err := p.assemble()
	if err != nil {
		return nil, fmt.Errorf("assembling boot sector: %w", err)
	}
	if len(code) > MaxCodeSize {
		return nil, fmt.Errorf("%w: %d bytes, maximum is %d", ErrCodeTooLarge, len(code), MaxCodeSize)
	}

	sector := &Sector{
		options:  opts,
		program:  p,
		codeSize: len(code),
	}
	copy(sector.data[:], code)
	binary.LittleEndian.PutUint16(sector.data[SignatureOffset:], Signature)
	return sector, nil
}

// Bytes returns a copy of the 512 byte sector.
func (s *Sector) Bytes() []byte {
	buf := make([]byte, len(s.data))
	copy(buf, s.data[:])
	return buf
}

// CodeSize returns the size of the generated code without padding.
func (s *Sector) CodeSize() int {
	return s.codeSize
}

// Free returns the number of unused bytes in front of the signature.
func (s *Sector) Free() int {
	return MaxCodeSize - s.codeSize
}

// Valid returns whether a sector carries the boot signature.
func Valid(sector []byte) bool {
	return len(sector) == disk.SectorSize &&
		binary.LittleEndian.Uint16(sector[SignatureOffset:]) == Signature
}

// WriteListing writes the NASM source of the boot sector. Every line carries
// the address and opcode bytes as comment.
func (s *Sector) WriteListing(w io.Writer) error {
	layout := s.options.Layout
	header := fmt.Sprintf("; bootpack boot sector\n"+
		"; load buffer %s (%d sectors), destination %s, key 0x%02x\n\n"+
		"bits 16\n"+
		"org 0x%04x\n\n",
		layout.Load, layout.SectorCount, layout.Destination, s.options.Key, s.program.origin)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("writing listing header: %w", err)
	}

	for _, ins := range s.program.instructions {
		if ins.label != "" {
			if _, err := fmt.Fprintf(w, "%s:\n", ins.label); err != nil {
				return fmt.Errorf("writing label: %w", err)
			}
		}

		comment := fmt.Sprintf("%04x: % x", int(s.program.origin)+ins.offset, ins.code)
		if ins.comment != "" {
			comment = fmt.Sprintf("%-22s %s", comment, ins.comment)
		}
		if _, err := fmt.Fprintf(w, "    %-26s ; %s\n", ins.text, comment); err != nil {
			return fmt.Errorf("writing instruction: %w", err)
		}
	}

	footer := fmt.Sprintf("\n    times %d-($-$$) db 0\n    dw 0x%04x\n", SignatureOffset, Signature)
	if _, err := io.WriteString(w, footer); err != nil {
		return fmt.Errorf("writing listing footer: %w", err)
	}
	return nil
}

// WriteListingFile writes the NASM source of the boot sector to the named file.
func (s *Sector) WriteListingFile(name string) error {
	file, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating file '%s': %w", name, err)
	}

	if err := s.WriteListing(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing file '%s': %w", name, err)
	}
	return nil
}
