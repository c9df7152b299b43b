package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retroenv/bootpack/internal/bootsector"
	"github.com/retroenv/bootpack/internal/decoder"
	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/encoder"
	"github.com/retroenv/bootpack/internal/options"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestNew(t *testing.T) {
	logger := log.NewTestLogger(t)
	p := New(logger)

	assert.NotNil(t, p)
	assert.NotNil(t, p.logger)
}

func createProgramOptions(t *testing.T, payload []byte) options.Program {
	t.Helper()
	tmpDir := t.TempDir()

	opts := options.Program{
		Positional: options.Positional{
			Input:  filepath.Join(tmpDir, "payload.bin"),
			Output: filepath.Join(tmpDir, "packed.bin"),
		},
		Flags: options.Flags{Quiet: true},
	}
	if payload != nil {
		if err := os.WriteFile(opts.Input, payload, 0600); err != nil {
			t.Fatalf("Failed to create temp file: %v", err)
		}
	}
	return opts
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("reference payload", func(t *testing.T) {
		payload := bytes.Repeat([]byte{0x41}, 520)
		opts := createProgramOptions(t, payload)

		result, err := New(log.NewTestLogger(t)).Execute(ctx, opts, options.NewPacker())
		assert.NoError(t, err)
		assert.Equal(t, 520, result.Encoding.OriginalSize)
		assert.Equal(t, 6, result.Encoding.EncodedSize)
		assert.Equal(t, 1, result.Encoding.Sectors)
		assert.Equal(t, uint8(1), result.Layout.SectorCount)
		assert.Nil(t, result.Image)

		packed, err := os.ReadFile(opts.Output)
		assert.NoError(t, err)
		assert.Len(t, packed, disk.SectorSize)
		assert.Equal(t, []byte{0xff, 0x28, 0xff, 0x28, 0x0a, 0x28, 0x00, 0x00}, packed[:8])
	})

	t.Run("empty input", func(t *testing.T) {
		opts := createProgramOptions(t, []byte{})

		_, err := New(log.NewTestLogger(t)).Execute(ctx, opts, options.NewPacker())
		assert.True(t, errors.Is(err, encoder.ErrEmptyInput))

		_, err = os.Stat(opts.Output)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("non-existent file", func(t *testing.T) {
		opts := createProgramOptions(t, nil)

		_, err := New(log.NewTestLogger(t)).Execute(ctx, opts, options.NewPacker())
		assert.ErrorContains(t, err, "opening input file")
	})

	t.Run("unwritable output", func(t *testing.T) {
		opts := createProgramOptions(t, []byte{1})
		opts.Output = filepath.Join(opts.Output, "missing", "packed.bin")

		_, err := New(log.NewTestLogger(t)).Execute(ctx, opts, options.NewPacker())
		assert.ErrorContains(t, err, "writing packed output")
	})

	t.Run("cancelled", func(t *testing.T) {
		opts := createProgramOptions(t, []byte{1})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := New(log.NewTestLogger(t)).Execute(cancelled, opts, options.NewPacker())
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestExecuteReader(t *testing.T) {
	ctx := context.Background()

	t.Run("declared size", func(t *testing.T) {
		opts := createProgramOptions(t, nil)
		reader := bytes.NewReader([]byte{1, 1, 1, 2, 2})

		result, err := New(log.NewTestLogger(t)).ExecuteReader(ctx, reader, 3, opts, options.NewPacker())
		assert.NoError(t, err)
		assert.Equal(t, []byte{1, 1, 1}, result.Encoding.Payload)
		assert.Equal(t, 2, result.Encoding.EncodedSize)
	})

	t.Run("short read", func(t *testing.T) {
		opts := createProgramOptions(t, nil)
		reader := bytes.NewReader([]byte{1, 2, 3})

		_, err := New(log.NewTestLogger(t)).ExecuteReader(ctx, reader, 8, opts, options.NewPacker())
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

		_, err = os.Stat(opts.Output)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestExecuteWithImage(t *testing.T) {
	payload := []byte("bootpack payload\x00\x00\x00\x00\x00\x00\x00\x00")
	opts := createProgramOptions(t, payload)
	dir := filepath.Dir(opts.Output)
	opts.Image = filepath.Join(dir, "disk.img")
	opts.Listing = filepath.Join(dir, "boot.asm")
	opts.Floppy = true
	opts.Verify = true
	opts.DebugChars = true

	packer := options.NewPacker()
	packer.Key = 0x5a

	result, err := New(log.NewTestLogger(t)).Execute(context.Background(), opts, packer)
	assert.NoError(t, err)

	image, err := os.ReadFile(opts.Image)
	assert.NoError(t, err)
	assert.Len(t, image, disk.Floppy144.Size())
	assert.Equal(t, result.Image, image)
	assert.True(t, bootsector.Valid(image[:disk.SectorSize]))
	assert.Equal(t, result.Encoding.Packed, image[disk.SectorSize:2*disk.SectorSize])
	assert.Equal(t, payload, decoder.Decode(result.Encoding.Packed, packer.Key))

	listing, err := os.ReadFile(opts.Listing)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(listing), "xor al, 0x5a"))
}

func TestExecuteLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("payload larger than destination", func(t *testing.T) {
		packer := options.NewPacker()
		packer.Layout.DestinationSize = 16
		opts := createProgramOptions(t, make([]byte, 17))

		_, err := New(log.NewTestLogger(t)).ExecuteReader(ctx, bytes.NewReader(make([]byte, 17)), 17, opts, packer)
		assert.True(t, errors.Is(err, ErrPayloadTooLarge))
	})

	t.Run("too many sectors", func(t *testing.T) {
		// alternating bytes encode to one pair per byte
		payload := make([]byte, 5000)
		for i := range payload {
			payload[i] = byte(i)
		}
		opts := createProgramOptions(t, payload)

		_, err := New(log.NewTestLogger(t)).Execute(ctx, opts, options.NewPacker())
		assert.True(t, errors.Is(err, ErrPayloadTooLarge))
	})

	t.Run("maximum sector count", func(t *testing.T) {
		payload := make([]byte, 4000)
		for i := range payload {
			payload[i] = byte(i)
		}
		opts := createProgramOptions(t, payload)
		opts.Verify = true

		result, err := New(log.NewTestLogger(t)).Execute(ctx, opts, options.NewPacker())
		assert.NoError(t, err)
		assert.Equal(t, 16, result.Encoding.Sectors)
	})
}

func TestWriteSummary(t *testing.T) {
	result, err := encoder.Encode(bytes.Repeat([]byte{0x41}, 520), encoder.DefaultOptions())
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, (&Result{Encoding: result}).WriteSummary(&buf))
	assert.Equal(t, "original size:   520 bytes\n"+
		"compressed size: 6 bytes\n"+
		"ratio:           1.15%\n"+
		"sectors:         1\n", buf.String())
}
