// Package encoder packs a raw payload into the sector aligned stream that the
// boot sector decodes: the payload is obfuscated first, then run-length
// encoded, terminated by an end marker and padded to the sector size.
package encoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/obfuscate"
	"github.com/retroenv/bootpack/internal/rle"
)

// ErrEmptyInput is returned when there is no payload to encode.
var ErrEmptyInput = errors.New("input is empty")

// Options controls the encoding.
type Options struct {
	Key          byte // obfuscation key
	NoTerminator bool // rely on the sector padding to terminate the stream
}

// DefaultOptions returns the default encoding options.
func DefaultOptions() Options {
	return Options{
		Key: obfuscate.DefaultKey,
	}
}

// Result contains the packed image and its statistics.
type Result struct {
	Payload      []byte // raw payload that was packed
	Packed       []byte // sector aligned packed image
	OriginalSize int    // size of the raw payload
	EncodedSize  int    // size of the encoded pairs, without terminator and padding
	Pairs        int    // number of run-length pairs
	Sectors      int    // number of sectors of the packed image
}

// Ratio returns the encoded size relative to the original size.
func (r *Result) Ratio() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return float64(r.EncodedSize) / float64(r.OriginalSize)
}

// Encode packs the given payload. The input data is not modified.
func Encode(data []byte, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	obfuscate.Apply(buf, opts.Key)

	pairs := rle.Encode(buf)
	stream := rle.Append(make([]byte, 0, len(pairs)*rle.PairSize+rle.PairSize), pairs)
	encodedSize := len(stream)
	if !opts.NoTerminator {
		stream = rle.AppendEnd(stream)
	}

	packed := Pad(stream, disk.SectorSize)
	return &Result{
		Payload:      data,
		Packed:       packed,
		OriginalSize: len(data),
		EncodedSize:  encodedSize,
		Pairs:        len(pairs),
		Sectors:      len(packed) / disk.SectorSize,
	}, nil
}

// EncodeReader reads exactly size bytes from the reader and packs them. A
// reader that ends early is an error.
func EncodeReader(reader io.Reader, size int64, opts Options) (*Result, error) {
	if size <= 0 {
		return nil, ErrEmptyInput
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("reading %d bytes of input: %w", size, err)
	}
	return Encode(data, opts)
}

// Pad appends zero bytes to data until its length is a multiple of the given
// size. Data that is already aligned is returned unchanged.
func Pad(data []byte, size int) []byte {
	remainder := len(data) % size
	if remainder == 0 {
		return data
	}
	return append(data, make([]byte, size-remainder)...)
}
