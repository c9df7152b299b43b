// Package rle implements the run-length encoding of the packed stream format.
//
// The stream is a sequence of 2 byte records [count][value], where count in the
// range 1-255 is the number of times value is repeated. A count of 0 never
// describes a run and is reserved as the end of stream marker.
package rle

// MaxRun is the longest run a single pair can describe.
const MaxRun = 255

// EndMarker is the count value that terminates a stream.
const EndMarker = 0

// PairSize is the encoded size of a pair in bytes.
const PairSize = 2

// Pair describes a run of Count identical bytes.
type Pair struct {
	Count byte
	Value byte
}

// Encode splits data into greedy maximal runs. A run longer than MaxRun is
// split into pairs of MaxRun followed by the remainder.
func Encode(data []byte) []Pair {
	var pairs []Pair

	for i := 0; i < len(data); {
		value := data[i]
		count := 1
		for i+count < len(data) && data[i+count] == value && count < MaxRun {
			count++
		}

		pairs = append(pairs, Pair{Count: byte(count), Value: value})
		i += count
	}

	return pairs
}

// Append appends the serialized pairs to dst and returns the extended buffer.
func Append(dst []byte, pairs []Pair) []byte {
	for _, pair := range pairs {
		dst = append(dst, pair.Count, pair.Value)
	}
	return dst
}

// AppendEnd appends an end of stream marker pair.
func AppendEnd(dst []byte) []byte {
	return append(dst, EndMarker, 0)
}

// Parse returns the pairs of a serialized stream up to the end marker or the
// end of the data, and the number of bytes the pairs occupy.
func Parse(data []byte) ([]Pair, int) {
	var pairs []Pair

	i := 0
	for ; i+1 < len(data); i += PairSize {
		if data[i] == EndMarker {
			break
		}
		pairs = append(pairs, Pair{Count: data[i], Value: data[i+1]})
	}
	return pairs, len(pairs) * PairSize
}

// Size returns the number of bytes described by the pairs.
func Size(pairs []Pair) int {
	var size int
	for _, pair := range pairs {
		size += int(pair.Count)
	}
	return size
}
