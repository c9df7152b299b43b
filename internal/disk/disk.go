// Package disk provides the disk geometry, CHS addressing and the disk image
// layout used by the boot loader: the boot sector in sector 0 followed by the
// packed payload starting at sector 1.
package disk

import (
	"errors"
	"fmt"
)

// SectorSize is the size of a single disk sector in bytes.
const SectorSize = 512

// PayloadSector is the 1-based sector number of the first packed payload
// sector on cylinder 0, head 0, immediately following the boot sector.
const PayloadSector = 2

var (
	// ErrReadFailed is returned when a sector read can not be served.
	ErrReadFailed = errors.New("disk read failed")
	// ErrOutOfRange is returned for addresses outside of the disk geometry.
	ErrOutOfRange = errors.New("address out of range")
)

// CHS is a cylinder/head/sector address. Sector numbers are 1-based.
type CHS struct {
	Cylinder uint16
	Head     uint8
	Sector   uint8
}

// String returns the address formatted as cylinder/head/sector.
func (c CHS) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Cylinder, c.Head, c.Sector)
}

// Geometry describes the physical layout of a disk.
type Geometry struct {
	Cylinders       uint16
	Heads           uint8
	SectorsPerTrack uint8
}

// Floppy144 is the geometry of a 3.5" 1.44 MB floppy disk.
var Floppy144 = Geometry{
	Cylinders:       80,
	Heads:           2,
	SectorsPerTrack: 18,
}

// Sectors returns the total number of sectors of the geometry.
func (g Geometry) Sectors() int {
	return int(g.Cylinders) * int(g.Heads) * int(g.SectorsPerTrack)
}

// Size returns the capacity of the geometry in bytes.
func (g Geometry) Size() int {
	return g.Sectors() * SectorSize
}

// LBA converts a CHS address to a 0-based logical block address.
func (g Geometry) LBA(c CHS) (int, error) {
	if c.Sector == 0 || c.Sector > g.SectorsPerTrack ||
		c.Head >= g.Heads || c.Cylinder >= g.Cylinders {
		return 0, fmt.Errorf("%w: chs %s", ErrOutOfRange, c)
	}

	track := int(c.Cylinder)*int(g.Heads) + int(c.Head)
	return track*int(g.SectorsPerTrack) + int(c.Sector) - 1, nil
}

// CHS converts a 0-based logical block address to a CHS address.
func (g Geometry) CHS(lba int) (CHS, error) {
	if lba < 0 || lba >= g.Sectors() {
		return CHS{}, fmt.Errorf("%w: lba %d", ErrOutOfRange, lba)
	}

	spt := int(g.SectorsPerTrack)
	track := lba / spt
	return CHS{
		Cylinder: uint16(track / int(g.Heads)),
		Head:     uint8(track % int(g.Heads)),
		Sector:   uint8(lba%spt) + 1,
	}, nil
}
