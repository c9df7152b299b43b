package disk

import (
	"fmt"
)

// Image is an in-memory disk image with a fixed geometry.
type Image struct {
	geometry Geometry
	data     []byte
}

// NewImage returns a disk image for the given data. The data has to be
// sector aligned and fit into the geometry.
func NewImage(data []byte, geometry Geometry) (*Image, error) {
	if len(data) == 0 || len(data)%SectorSize != 0 {
		return nil, fmt.Errorf("image size %d is not a multiple of the sector size %d", len(data), SectorSize)
	}
	if len(data) > geometry.Size() {
		return nil, fmt.Errorf("image size %d exceeds disk capacity %d", len(data), geometry.Size())
	}

	return &Image{
		geometry: geometry,
		data:     data,
	}, nil
}

// Bytes returns the raw image data.
func (i *Image) Bytes() []byte {
	return i.data
}

// Sectors returns the number of sectors stored in the image.
func (i *Image) Sectors() int {
	return len(i.data) / SectorSize
}

// BootSector returns the content of the first sector.
func (i *Image) BootSector() []byte {
	return i.data[:SectorSize]
}

// ReadSectors returns count sectors starting at the given address. Like a
// floppy controller without multi track support, a read has to stay within
// a single track.
func (i *Image) ReadSectors(chs CHS, count int) ([]byte, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: invalid sector count %d", ErrReadFailed, count)
	}

	lba, err := i.geometry.LBA(chs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if int(chs.Sector)-1+count > int(i.geometry.SectorsPerTrack) {
		return nil, fmt.Errorf("%w: reading %d sectors from %s crosses a track", ErrOutOfRange, count, chs)
	}
	if lba+count > i.Sectors() {
		return nil, fmt.Errorf("%w: sectors %d-%d beyond image end", ErrReadFailed, lba, lba+count-1)
	}

	start := lba * SectorSize
	buf := make([]byte, count*SectorSize)
	copy(buf, i.data[start:start+len(buf)])
	return buf, nil
}

// Assemble builds a disk image from a boot sector and a packed payload.
// The boot sector occupies sector 0 and the packed payload starts at sector 1.
// If floppy is set, the image is padded to a full 1.44 MB floppy disk.
func Assemble(bootSector, packed []byte, floppy bool) ([]byte, error) {
	if len(bootSector) != SectorSize {
		return nil, fmt.Errorf("boot sector size %d is not %d", len(bootSector), SectorSize)
	}
	if len(packed) == 0 || len(packed)%SectorSize != 0 {
		return nil, fmt.Errorf("packed payload size %d is not sector aligned", len(packed))
	}

	size := SectorSize + len(packed)
	if floppy {
		if size > Floppy144.Size() {
			return nil, fmt.Errorf("image size %d exceeds floppy capacity %d", size, Floppy144.Size())
		}
		size = Floppy144.Size()
	}

	image := make([]byte, size)
	copy(image, bootSector)
	copy(image[SectorSize:], packed)
	return image, nil
}
