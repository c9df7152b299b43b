// Package obfuscate implements the self-inverse single byte XOR transform that
// is applied to the payload before compression.
package obfuscate

// DefaultKey is the key used when no other key is configured.
const DefaultKey byte = 0x69

// Byte transforms a single byte. Applying it twice returns the original value.
func Byte(value, key byte) byte {
	return value ^ key
}

// Apply transforms all bytes of data in place.
func Apply(data []byte, key byte) {
	for i, b := range data {
		data[i] = Byte(b, key)
	}
}
