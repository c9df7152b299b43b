package rle

import (
	"bytes"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected []Pair
	}{
		{
			name:     "single byte",
			data:     []byte{0x69},
			expected: []Pair{{1, 0x69}},
		},
		{
			name:     "distinct bytes",
			data:     []byte{1, 2, 3},
			expected: []Pair{{1, 1}, {1, 2}, {1, 3}},
		},
		{
			name:     "mixed runs",
			data:     []byte{7, 7, 7, 0, 0, 7},
			expected: []Pair{{3, 7}, {2, 0}, {1, 7}},
		},
		{
			name:     "run at maximum",
			data:     bytes.Repeat([]byte{0xaa}, MaxRun),
			expected: []Pair{{MaxRun, 0xaa}},
		},
		{
			name:     "run of 300",
			data:     bytes.Repeat([]byte{0xaa}, 300),
			expected: []Pair{{MaxRun, 0xaa}, {45, 0xaa}},
		},
		{
			name:     "run of 520",
			data:     bytes.Repeat([]byte{0x28}, 520),
			expected: []Pair{{MaxRun, 0x28}, {MaxRun, 0x28}, {10, 0x28}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs := Encode(tt.data)
			assert.Equal(t, tt.expected, pairs)
			assert.Equal(t, len(tt.data), Size(pairs))
		})
	}

	assert.Len(t, Encode(nil), 0)
}

func TestEncodeRunDecomposition(t *testing.T) {
	for _, length := range []int{1, 2, 254, 255, 256, 509, 510, 511, 1000, 4096} {
		pairs := Encode(bytes.Repeat([]byte{0x11}, length))

		assert.Len(t, pairs, (length+MaxRun-1)/MaxRun)
		assert.Equal(t, length, Size(pairs))
		for i, pair := range pairs {
			assert.True(t, pair.Count >= 1)
			if i < len(pairs)-1 {
				assert.Equal(t, byte(MaxRun), pair.Count)
			}
		}
	}
}

func TestAppendAndParse(t *testing.T) {
	pairs := []Pair{{3, 7}, {MaxRun, 0}, {1, 0xff}}

	stream := Append(nil, pairs)
	assert.Equal(t, []byte{3, 7, MaxRun, 0, 1, 0xff}, stream)

	stream = AppendEnd(stream)
	assert.Equal(t, []byte{3, 7, MaxRun, 0, 1, 0xff, 0, 0}, stream)

	parsed, size := Parse(append(stream, 0, 0, 9, 9))
	assert.Equal(t, pairs, parsed)
	assert.Equal(t, 6, size)

	parsed, size = Parse([]byte{2, 5, 1})
	assert.Equal(t, []Pair{{2, 5}}, parsed)
	assert.Equal(t, 2, size)
}
