// Package machine models the 16-bit real-mode x86 environment the boot loader
// runs in: segmented addresses, the 1 MB address space, the register file and
// the BIOS services the loader depends on.
package machine

import "fmt"

// Address is a real-mode segment:offset address.
type Address struct {
	Segment uint16
	Offset  uint16
}

// Linear returns the 20-bit linear address.
func (a Address) Linear() uint32 {
	return (uint32(a.Segment)<<4 + uint32(a.Offset)) & addressMask
}

// String returns the address in segment:offset notation.
func (a Address) String() string {
	return fmt.Sprintf("%04X:%04X", a.Segment, a.Offset)
}

// region is a half-open range of linear addresses.
type region struct {
	start uint32
	end   uint32
}

func newRegion(addr Address, size uint32) region {
	start := addr.Linear()
	return region{start: start, end: start + size}
}

func (r region) overlaps(other region) bool {
	return r.start < other.end && other.start < r.end
}
