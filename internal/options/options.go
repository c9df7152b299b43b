// Package options contains the program options.
package options

import (
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/bootpack/internal/obfuscate"
)

// Positional contains positional arguments.
type Positional struct {
	Input  string `arg:"positional" usage:"payload file to pack"`
	Output string `arg:"positional" usage:"packed output file"`
}

// Parameters contains file path options.
type Parameters struct {
	Image   string `flag:"image" usage:"write a bootable disk image"`
	Listing string `flag:"listing" usage:"write the NASM listing of the boot sector"`
}

// Flags contains behavior options.
type Flags struct {
	Floppy     bool `flag:"floppy" usage:"pad the disk image to a 1.44MB floppy"`
	DebugChars bool `flag:"debug-chars" usage:"print a character at every boot stage"`
	Verify     bool `flag:"verify" usage:"verify the packed output by decoding and booting it"`
	Debug      bool `flag:"debug" usage:"enable debug logging"`
	Quiet      bool `flag:"q" usage:"quiet mode"`
}

// Program options of the packer.
type Program struct {
	Positional
	Parameters
	Flags
}

// Packer defines options to control the encoding and the boot sector.
type Packer struct {
	Key          byte           // obfuscation key
	NoTerminator bool           // rely on the zero padding as end marker
	Layout       machine.Layout // memory layout, the sector count is derived from the packed size
}

// NewPacker returns a new options instance with default options.
func NewPacker() Packer {
	return Packer{
		Key:    obfuscate.DefaultKey,
		Layout: machine.DefaultLayout(),
	}
}

// Simulator options of the boot simulator.
type Simulator struct {
	Image    string // disk image to boot
	Drive    byte   // drive number the image is attached as
	Dump     int    // number of decoded bytes to dump
	FailRead bool   // simulate a failing disk read
	MaxSteps int    // instruction budget
	Debug    bool
	Quiet    bool
}
