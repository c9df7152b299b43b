package machine

import "github.com/retroenv/retrogolib/arch/cpu/x86"

// Flag masks of the FLAGS register.
const (
	FlagCarry     uint16 = 1 << x86.FlagCarry
	FlagZero      uint16 = 1 << x86.FlagZero
	FlagInterrupt uint16 = 1 << x86.FlagInterrupt
	FlagDirection uint16 = 1 << x86.FlagDirection
)

// Indexes of the general purpose registers as encoded in instructions.
const (
	AX = iota
	CX
	DX
	BX
	SP
	BP
	SI
	DI
)

// Indexes of the 8-bit registers as encoded in instructions.
const (
	AL = iota
	CL
	DL
	BL
	AH
	CH
	DH
	BH
)

// Indexes of the segment registers as encoded in instructions.
const (
	ES = iota
	CS
	SS
	DS
)

// Registers is the 8086 register file.
type Registers struct {
	General  [8]uint16 // AX CX DX BX SP BP SI DI
	Segments [4]uint16 // ES CS SS DS
	IP       uint16
	Flags    uint16
}

// Reg16 returns the 16-bit general purpose register with the given index.
func (r *Registers) Reg16(index int) uint16 {
	return r.General[index&7]
}

// SetReg16 sets the 16-bit general purpose register with the given index.
func (r *Registers) SetReg16(index int, value uint16) {
	r.General[index&7] = value
}

// Reg8 returns the 8-bit register with the given index, 0-3 address the low
// bytes of AX CX DX BX and 4-7 the high bytes.
func (r *Registers) Reg8(index int) byte {
	index &= 7
	if index < 4 {
		return byte(r.General[index])
	}
	return byte(r.General[index-4] >> 8)
}

// SetReg8 sets the 8-bit register with the given index.
func (r *Registers) SetReg8(index int, value byte) {
	index &= 7
	if index < 4 {
		r.General[index] = r.General[index]&0xff00 | uint16(value)
		return
	}
	r.General[index-4] = r.General[index-4]&0x00ff | uint16(value)<<8
}

// Segment returns the segment register with the given index.
func (r *Registers) Segment(index int) uint16 {
	return r.Segments[index&3]
}

// SetSegment sets the segment register with the given index.
func (r *Registers) SetSegment(index int, value uint16) {
	r.Segments[index&3] = value
}

// Flag returns whether the given flag bit is set.
func (r *Registers) Flag(flag uint16) bool {
	return r.Flags&flag != 0
}

// SetFlag sets or clears the given flag bit.
func (r *Registers) SetFlag(flag uint16, set bool) {
	if set {
		r.Flags |= flag
	} else {
		r.Flags &^= flag
	}
}
