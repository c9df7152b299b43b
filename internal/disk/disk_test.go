package disk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestGeometryLBA(t *testing.T) {
	tests := []struct {
		name    string
		chs     CHS
		lba     int
		wantErr bool
	}{
		{"boot sector", CHS{0, 0, 1}, 0, false},
		{"payload sector", CHS{0, 0, PayloadSector}, 1, false},
		{"last sector of first track", CHS{0, 0, 18}, 17, false},
		{"second head", CHS{0, 1, 1}, 18, false},
		{"second cylinder", CHS{1, 0, 1}, 36, false},
		{"last sector", CHS{79, 1, 18}, 2879, false},
		{"sector zero", CHS{0, 0, 0}, 0, true},
		{"sector too large", CHS{0, 0, 19}, 0, true},
		{"head too large", CHS{0, 2, 1}, 0, true},
		{"cylinder too large", CHS{80, 0, 1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lba, err := Floppy144.LBA(tt.chs)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrOutOfRange))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.lba, lba)
		})
	}
}

func TestGeometryCHSInverse(t *testing.T) {
	for lba := range Floppy144.Sectors() {
		chs, err := Floppy144.CHS(lba)
		assert.NoError(t, err)

		back, err := Floppy144.LBA(chs)
		assert.NoError(t, err)
		assert.Equal(t, lba, back)
	}

	_, err := Floppy144.CHS(Floppy144.Sectors())
	assert.Error(t, err)
	_, err = Floppy144.CHS(-1)
	assert.Error(t, err)
}

func TestImageReadSectors(t *testing.T) {
	data := make([]byte, 3*SectorSize)
	for i := range data {
		data[i] = byte(i / SectorSize)
	}

	img, err := NewImage(data, Floppy144)
	assert.NoError(t, err)
	assert.Equal(t, 3, img.Sectors())
	assert.Equal(t, data[:SectorSize], img.BootSector())

	t.Run("single sector", func(t *testing.T) {
		buf, err := img.ReadSectors(CHS{0, 0, PayloadSector}, 1)
		assert.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{1}, SectorSize), buf)
	})

	t.Run("multiple sectors", func(t *testing.T) {
		buf, err := img.ReadSectors(CHS{0, 0, PayloadSector}, 2)
		assert.NoError(t, err)
		assert.Len(t, buf, 2*SectorSize)
		assert.Equal(t, byte(2), buf[SectorSize])
	})

	t.Run("read past image end", func(t *testing.T) {
		_, err := img.ReadSectors(CHS{0, 0, PayloadSector}, 3)
		assert.True(t, errors.Is(err, ErrReadFailed))
	})

	t.Run("read across track", func(t *testing.T) {
		_, err := img.ReadSectors(CHS{0, 0, 18}, 2)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})

	t.Run("invalid count", func(t *testing.T) {
		_, err := img.ReadSectors(CHS{0, 0, 1}, 0)
		assert.True(t, errors.Is(err, ErrReadFailed))
	})

	t.Run("returned buffer is a copy", func(t *testing.T) {
		buf, err := img.ReadSectors(CHS{0, 0, 1}, 1)
		assert.NoError(t, err)
		buf[0] = 0xff
		assert.Equal(t, byte(0), img.Bytes()[0])
	})
}

func TestNewImage(t *testing.T) {
	_, err := NewImage(nil, Floppy144)
	assert.Error(t, err)

	_, err = NewImage(make([]byte, 100), Floppy144)
	assert.ErrorContains(t, err, "not a multiple")

	_, err = NewImage(make([]byte, Floppy144.Size()+SectorSize), Floppy144)
	assert.ErrorContains(t, err, "exceeds disk capacity")
}

func TestAssemble(t *testing.T) {
	boot := make([]byte, SectorSize)
	boot[0] = 0xfa
	packed := make([]byte, SectorSize)
	packed[0] = 0x01

	image, err := Assemble(boot, packed, false)
	assert.NoError(t, err)
	assert.Len(t, image, 2*SectorSize)
	assert.Equal(t, byte(0xfa), image[0])
	assert.Equal(t, byte(0x01), image[SectorSize])

	image, err = Assemble(boot, packed, true)
	assert.NoError(t, err)
	assert.Len(t, image, Floppy144.Size())

	_, err = Assemble(boot[:10], packed, false)
	assert.Error(t, err)

	_, err = Assemble(boot, packed[:10], false)
	assert.Error(t, err)
}
