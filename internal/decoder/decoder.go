// Package decoder implements the unpack routine of the boot sector as an
// explicit state machine. The state holds the source cursor into the packed
// stream, the destination cursor and the obfuscation key, and is advanced one
// pair at a time. Memory is accessed through an interface so that the same
// logic runs on the real-mode memory model and on plain host buffers.
//
// Like the boot sector code, the decoder performs no bounds checks: the size
// of the destination region is a contract of the memory layout.
package decoder

import (
	"github.com/retroenv/bootpack/internal/obfuscate"
	"github.com/retroenv/bootpack/internal/rle"
)

// Memory provides byte access to linear addresses.
type Memory interface {
	ReadMemory(address uint32) byte
	WriteMemory(address uint32, value byte)
}

// State is the decoder state.
type State struct {
	Source uint32 // address of the next stream byte
	Dest   uint32 // address of the next output byte
	Key    byte
	Done   bool // end marker was read
}

// New returns a decoder state reading the stream at source and writing the
// decoded bytes to dest.
func New(source, dest uint32, key byte) *State {
	return &State{
		Source: source,
		Dest:   dest,
		Key:    key,
	}
}

// Step decodes a single pair and returns whether the end marker was reached.
// The source memory is only read.
func (s *State) Step(mem Memory) bool {
	if s.Done {
		return true
	}

	count := mem.ReadMemory(s.Source)
	s.Source++
	if count == rle.EndMarker {
		s.Done = true
		return true
	}

	value := obfuscate.Byte(mem.ReadMemory(s.Source), s.Key)
	s.Source++
	for range count {
		mem.WriteMemory(s.Dest, value)
		s.Dest++
	}
	return false
}

// Run decodes pairs until the end marker and returns the number of bytes
// written to the destination.
func (s *State) Run(mem Memory) int {
	start := s.Dest
	for !s.Step(mem) {
	}
	return int(s.Dest - start)
}

// Decode unpacks a stream held in a host buffer. The end of the buffer is
// treated like an end marker.
func Decode(stream []byte, key byte) []byte {
	mem := &hostMemory{
		source: stream,
	}
	state := New(0, hostDestBase, key)
	state.Run(mem)
	return mem.dest
}

// hostDestBase separates the destination from the source address range.
const hostDestBase = 0x8000_0000

// hostMemory maps the source buffer to address 0 and a growing destination
// buffer to hostDestBase.
type hostMemory struct {
	source []byte
	dest   []byte
}

func (m *hostMemory) ReadMemory(address uint32) byte {
	if address >= uint32(len(m.source)) {
		return rle.EndMarker
	}
	return m.source[address]
}

func (m *hostMemory) WriteMemory(address uint32, value byte) {
	index := int(address - hostDestBase)
	if index == len(m.dest) {
		m.dest = append(m.dest, value)
		return
	}
	m.dest[index] = value
}
