package machine

import (
	"fmt"
	"io"

	"github.com/retroenv/bootpack/internal/disk"
)

// BIOS defines the firmware services available to the boot loader.
type BIOS interface {
	// ReadSectors reads count sectors of the given drive starting at the
	// CHS address into memory at the linear destination address.
	ReadSectors(drive byte, chs disk.CHS, count byte, mem *Memory, dest uint32) error
	// Teletype outputs a character on the screen.
	Teletype(char byte)
}

// Compile-time check to ensure Firmware implements BIOS.
var _ BIOS = (*Firmware)(nil)

// Firmware is a BIOS backed by a disk image attached as a single drive.
type Firmware struct {
	Disk      *disk.Image
	Drive     byte      // drive number the disk is attached as
	Output    io.Writer // teletype output, discarded if nil
	ReadError error     // if set, every disk read fails with this error
}

// NewFirmware returns a firmware with the image attached as the given drive.
func NewFirmware(image *disk.Image, drive byte, output io.Writer) *Firmware {
	return &Firmware{
		Disk:   image,
		Drive:  drive,
		Output: output,
	}
}

// ReadSectors implements the BIOS disk read service.
func (f *Firmware) ReadSectors(drive byte, chs disk.CHS, count byte, mem *Memory, dest uint32) error {
	if f.ReadError != nil {
		return fmt.Errorf("%w: %w", disk.ErrReadFailed, f.ReadError)
	}
	if f.Disk == nil || drive != f.Drive {
		return fmt.Errorf("%w: drive 0x%02x is not attached", disk.ErrReadFailed, drive)
	}

	data, err := f.Disk.ReadSectors(chs, int(count))
	if err != nil {
		return err
	}
	mem.Load(dest, data)
	return nil
}

// Teletype implements the BIOS teletype output service.
func (f *Firmware) Teletype(char byte) {
	if f.Output == nil {
		return
	}
	_, _ = f.Output.Write([]byte{char})
}
