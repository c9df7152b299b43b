package machine

// MemorySize is the size of the real-mode address space.
const MemorySize = 1 << 20

// addresses wrap around at 1 MB like on an 8086 with the A20 line disabled.
const addressMask = MemorySize - 1

// Memory is the real-mode address space.
type Memory struct {
	data []byte
}

// NewMemory returns a zeroed 1 MB address space.
func NewMemory() *Memory {
	return &Memory{
		data: make([]byte, MemorySize),
	}
}

// ReadMemory reads a byte from the given linear address.
func (m *Memory) ReadMemory(address uint32) byte {
	return m.data[address&addressMask]
}

// WriteMemory writes a byte to the given linear address.
func (m *Memory) WriteMemory(address uint32, value byte) {
	m.data[address&addressMask] = value
}

// Load copies data into memory starting at the given linear address.
func (m *Memory) Load(address uint32, data []byte) {
	for i, b := range data {
		m.WriteMemory(address+uint32(i), b)
	}
}

// Slice returns a copy of size bytes starting at the given linear address.
func (m *Memory) Slice(address uint32, size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = m.ReadMemory(address + uint32(i))
	}
	return buf
}
