package verification

import (
	"bytes"
	"context"
	"testing"

	"github.com/retroenv/bootpack/internal/assembler/nasm"
	"github.com/retroenv/bootpack/internal/bootsector"
	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/encoder"
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/bootpack/internal/obfuscate"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func createImage(t *testing.T, payload []byte, sectorKey byte) ([]byte, machine.Layout) {
	t.Helper()

	result, err := encoder.Encode(payload, encoder.DefaultOptions())
	assert.NoError(t, err)

	layout := machine.DefaultLayout()
	layout.SectorCount = uint8(result.Sectors)
	sector, err := bootsector.Build(bootsector.Options{Layout: layout, Key: sectorKey})
	assert.NoError(t, err)

	image, err := disk.Assemble(sector.Bytes(), result.Packed, false)
	assert.NoError(t, err)
	return image, layout
}

func TestVerifyPacked(t *testing.T) {
	logger := log.NewTestLogger(t)
	payload := []byte("AAAAAAAABBBBBBBBBBBBxyz\x00\x00\x00")

	result, err := encoder.Encode(payload, encoder.DefaultOptions())
	assert.NoError(t, err)
	assert.NoError(t, VerifyPacked(logger, payload, result.Packed, obfuscate.DefaultKey))

	// mismatches are logged at error level
	err = VerifyPacked(log.NewNop(), payload, result.Packed, 0x42)
	assert.ErrorContains(t, err, "decoded payload mismatch")

	other, err := encoder.Encode(payload[:len(payload)-1], encoder.DefaultOptions())
	assert.NoError(t, err)
	err = VerifyPacked(logger, payload, other.Packed, obfuscate.DefaultKey)
	assert.ErrorContains(t, err, "packed stream describes 25 bytes in 6 pairs, payload has 26 bytes")

	opts := encoder.DefaultOptions()
	opts.NoTerminator = true
	result, err = encoder.Encode(payload, opts)
	assert.NoError(t, err)
	assert.NoError(t, VerifyPacked(logger, payload, result.Packed, obfuscate.DefaultKey))
}

func TestVerifyBoot(t *testing.T) {
	ctx := context.Background()
	logger := log.NewTestLogger(t)
	payload := append(bytes.Repeat([]byte{0x90}, 600), []byte{0xeb, 0xfe}...)

	image, layout := createImage(t, payload, obfuscate.DefaultKey)
	assert.NoError(t, VerifyBoot(ctx, logger, image, payload, layout, obfuscate.DefaultKey))

	t.Run("key mismatch", func(t *testing.T) {
		image, layout := createImage(t, payload, 0x42)
		err := VerifyBoot(ctx, log.NewNop(), image, payload, layout, obfuscate.DefaultKey)
		assert.ErrorContains(t, err, "emulated boot")
	})

	t.Run("truncated image", func(t *testing.T) {
		err := VerifyBoot(ctx, logger, image[:disk.SectorSize], payload, layout, obfuscate.DefaultKey)
		assert.ErrorContains(t, err, "hosted boot")
	})

	t.Run("cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := VerifyBoot(cancelled, logger, image, payload, layout, obfuscate.DefaultKey)
		assert.ErrorContains(t, err, "interrupted")
	})
}

func TestVerifyListing(t *testing.T) {
	if !nasm.Installed() {
		t.Skip("nasm is not installed")
	}

	for _, debugChars := range []bool{false, true} {
		sector, err := bootsector.Build(bootsector.Options{
			Layout:     machine.DefaultLayout(),
			Key:        obfuscate.DefaultKey,
			DebugChars: debugChars,
		})
		assert.NoError(t, err)
		assert.NoError(t, VerifyListing(context.Background(), log.NewTestLogger(t), sector))
	}
}

func TestCheckBufferEqual(t *testing.T) {
	assert.NoError(t, checkBufferEqual(log.NewTestLogger(t), []byte{1, 2, 3}, []byte{1, 2, 3}))

	logger := log.NewNop()
	assert.ErrorContains(t, checkBufferEqual(logger, []byte{1, 2}, []byte{1, 2, 3}), "mismatched lengths")
	assert.ErrorContains(t, checkBufferEqual(logger, []byte{1, 2, 3}, []byte{1, 0, 0}), "2 offset mismatches")
}
