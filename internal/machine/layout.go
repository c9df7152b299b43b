package machine

import (
	"errors"
	"fmt"

	"github.com/retroenv/bootpack/internal/disk"
)

// MaxSectorCount is the highest number of payload sectors the loader can read
// with a single BIOS call: the rest of the first track after the boot sector.
const MaxSectorCount = 17

// ErrOverlap is returned when memory regions of a layout overlap.
var ErrOverlap = errors.New("memory regions overlap")

// Layout defines the fixed memory locations of the boot process.
type Layout struct {
	Origin          Address // where the firmware loads the boot sector
	StackPointer    uint16  // initial SP, the stack segment is 0
	Load            Address // buffer the packed sectors are read into
	Destination     Address // where the payload gets decoded to and started
	DestinationSize uint32  // memory reserved for the decoded payload
	SectorCount     uint8   // number of packed sectors to read
}

// DefaultLayout returns the standard layout: boot sector at 0000:7C00 with the
// stack growing down from it, packed sectors loaded right behind the boot
// sector and the payload decoded to 1000:0000.
func DefaultLayout() Layout {
	return Layout{
		Origin:          Address{Segment: 0x0000, Offset: 0x7c00},
		StackPointer:    0x7c00,
		Load:            Address{Segment: 0x0000, Offset: 0x7e00},
		Destination:     Address{Segment: 0x1000, Offset: 0x0000},
		DestinationSize: 0x10000,
		SectorCount:     1,
	}
}

// LoadSize returns the size of the load buffer in bytes.
func (l Layout) LoadSize() uint32 {
	return uint32(l.SectorCount) * disk.SectorSize
}

// Validate checks that the layout describes disjoint regions that the 16-bit
// string instructions can address without wrapping their offset registers.
func (l Layout) Validate() error {
	if l.SectorCount == 0 || l.SectorCount > MaxSectorCount {
		return fmt.Errorf("sector count %d out of range 1-%d", l.SectorCount, MaxSectorCount)
	}
	if l.Origin.Linear()+disk.SectorSize > 0x10000 {
		return fmt.Errorf("boot sector origin %s is not addressable from segment 0", l.Origin)
	}
	if uint32(l.Load.Offset)+l.LoadSize() > 0x10000 {
		return fmt.Errorf("load buffer at %s with %d bytes exceeds its segment", l.Load, l.LoadSize())
	}
	if l.DestinationSize == 0 || uint32(l.Destination.Offset)+l.DestinationSize > 0x10000 {
		return fmt.Errorf("destination at %s with %d bytes exceeds its segment", l.Destination, l.DestinationSize)
	}

	boot := newRegion(l.Origin, disk.SectorSize)
	load := newRegion(l.Load, l.LoadSize())
	dest := newRegion(l.Destination, l.DestinationSize)
	switch {
	case load.overlaps(dest):
		return fmt.Errorf("%w: load buffer %s and destination %s", ErrOverlap, l.Load, l.Destination)
	case load.overlaps(boot):
		return fmt.Errorf("%w: load buffer %s and boot sector %s", ErrOverlap, l.Load, l.Origin)
	case dest.overlaps(boot):
		return fmt.Errorf("%w: destination %s and boot sector %s", ErrOverlap, l.Destination, l.Origin)
	}
	return nil
}
