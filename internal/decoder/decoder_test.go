package decoder

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/retroenv/bootpack/internal/encoder"
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/bootpack/internal/obfuscate"
	"github.com/retroenv/retrogolib/assert"
)

func TestStep(t *testing.T) {
	mem := machine.NewMemory()
	key := obfuscate.DefaultKey
	mem.Load(0x100, []byte{3, 0x41 ^ key, 1, 0x42 ^ key, 0, 0})

	state := New(0x100, 0x2000, key)

	assert.False(t, state.Step(mem))
	assert.Equal(t, uint32(0x102), state.Source)
	assert.Equal(t, uint32(0x2003), state.Dest)
	assert.Equal(t, []byte{0x41, 0x41, 0x41, 0x00}, mem.Slice(0x2000, 4))

	assert.False(t, state.Step(mem))
	assert.Equal(t, uint32(0x104), state.Source)
	assert.Equal(t, uint32(0x2004), state.Dest)

	assert.True(t, state.Step(mem))
	assert.True(t, state.Done)
	assert.Equal(t, uint32(0x105), state.Source)
	assert.Equal(t, uint32(0x2004), state.Dest)

	// further steps do not advance a finished decoder
	assert.True(t, state.Step(mem))
	assert.Equal(t, uint32(0x105), state.Source)
}

func TestRunDoesNotModifySource(t *testing.T) {
	input := []byte("AAAAAAAABBBBCCDDDDDDDDDDDDD\x00\x00\x00")
	result, err := encoder.Encode(input, encoder.DefaultOptions())
	assert.NoError(t, err)

	mem := machine.NewMemory()
	mem.Load(0x7e00, result.Packed)

	state := New(0x7e00, 0x10000, obfuscate.DefaultKey)
	written := state.Run(mem)

	assert.Equal(t, len(input), written)
	assert.Equal(t, input, mem.Slice(0x10000, len(input)))
	assert.Equal(t, result.Packed, mem.Slice(0x7e00, len(result.Packed)))
}

func TestDecodeRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	inputs := [][]byte{
		{0x00},
		bytes.Repeat([]byte{0x41}, 520),
		bytes.Repeat([]byte{0x69}, 1000),
		[]byte("hello, world"),
	}
	for range 20 {
		data := make([]byte, 1+rnd.Intn(2000))
		for i := range data {
			// small alphabet to produce runs
			data[i] = byte(rnd.Intn(3))
		}
		inputs = append(inputs, data)
	}

	for _, input := range inputs {
		for _, key := range []byte{obfuscate.DefaultKey, 0x00, 0xff} {
			for _, noTerminator := range []bool{false, true} {
				result, err := encoder.Encode(input, encoder.Options{Key: key, NoTerminator: noTerminator})
				assert.NoError(t, err)

				decoded := Decode(result.Packed[:result.EncodedSize], key)
				assert.Equal(t, input, decoded)

				decoded = Decode(result.Packed, key)
				assert.Equal(t, input, decoded)
			}
		}
	}
}

func TestDecodeWrongKey(t *testing.T) {
	result, err := encoder.Encode([]byte{1, 2, 3}, encoder.DefaultOptions())
	assert.NoError(t, err)

	decoded := Decode(result.Packed, 0x00)
	assert.Len(t, decoded, 3)
	assert.Equal(t, []byte{1 ^ obfuscate.DefaultKey, 2 ^ obfuscate.DefaultKey, 3 ^ obfuscate.DefaultKey}, decoded)
}
