// Package emulator provides a minimal 8086 real-mode interpreter that executes
// boot sectors. It supports the instruction subset used by the generated boot
// loader and dispatches the BIOS video and disk interrupts to a machine.BIOS.
//
// Execution ends when the code performs a far jump out of the boot sector, which
// hands control to the loaded payload, or when the processor halts with
// interrupts disabled.
package emulator

import (
	"errors"
	"fmt"

	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/retrogolib/arch/cpu/x86"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

var (
	// ErrUnsupportedOpcode is returned for instructions outside the emulated subset.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
	// ErrUnsupportedInterrupt is returned for BIOS services that are not emulated.
	ErrUnsupportedInterrupt = errors.New("unsupported interrupt")
	// ErrStepLimit is returned when the code does not finish within the step limit.
	ErrStepLimit = errors.New("step limit exceeded")
)

// Outcome describes how the boot sector finished.
type Outcome int

// Boot outcomes.
const (
	OutcomeExec   Outcome = iota // far jump to the payload
	OutcomeHalted                // processor halted
)

func (o Outcome) String() string {
	if o == OutcomeExec {
		return "exec"
	}
	return "halted"
}

// Options controls the emulation.
type Options struct {
	MaxSteps int // maximum number of executed instructions
}

// DefaultOptions returns the default emulation options.
func DefaultOptions() Options {
	return Options{
		MaxSteps: 1_000_000,
	}
}

// Result describes the finished emulation.
type Result struct {
	Outcome   Outcome
	Entry     machine.Address // far jump target for OutcomeExec
	Steps     int             // executed instructions
	Addresses int             // number of distinct instruction addresses executed
	Registers machine.Registers
}

// CPU is the emulated processor.
type CPU struct {
	logger *log.Logger
	opts   Options
	mem    *machine.Memory
	bios   machine.BIOS

	regs      machine.Registers
	bootStart uint32
	bootEnd   uint32
	visited   set.Set[uint32]
	unique    int

	outcome Outcome
	entry   machine.Address
}

// New returns a new processor working on the given memory and firmware.
func New(logger *log.Logger, mem *machine.Memory, bios machine.BIOS, opts Options) *CPU {
	return &CPU{
		logger:  logger,
		opts:    opts,
		mem:     mem,
		bios:    bios,
		visited: set.New[uint32](),
	}
}

// Registers returns the current register values.
func (c *CPU) Registers() machine.Registers {
	return c.regs
}

// Boot loads the sector at the origin address and executes it like the
// firmware does, with the boot drive number passed in DL.
func (c *CPU) Boot(sector []byte, origin machine.Address, drive byte) (*Result, error) {
	c.bootStart = origin.Linear()
	c.bootEnd = c.bootStart + uint32(len(sector))
	c.mem.Load(c.bootStart, sector)

	c.regs = machine.Registers{}
	c.regs.SetSegment(machine.CS, origin.Segment)
	c.regs.IP = origin.Offset
	c.regs.SetReg8(machine.DL, drive)
	c.regs.SetFlag(machine.FlagInterrupt, true)

	for steps := 1; steps <= c.opts.MaxSteps; steps++ {
		done, err := c.step()
		if err != nil {
			return nil, fmt.Errorf("executing at %s: %w", c.pc(), err)
		}
		if !done {
			continue
		}

		c.logger.Debug("Boot sector finished",
			log.Stringer("outcome", c.outcome),
			log.Int("steps", steps),
			log.Int("addresses", c.unique))
		return &Result{
			Outcome:   c.outcome,
			Entry:     c.entry,
			Steps:     steps,
			Addresses: c.unique,
			Registers: c.regs,
		}, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrStepLimit, c.opts.MaxSteps)
}

func (c *CPU) pc() machine.Address {
	return machine.Address{Segment: c.regs.Segment(machine.CS), Offset: c.regs.IP}
}

func (c *CPU) fetch8() byte {
	b := c.mem.ReadMemory(c.pc().Linear())
	c.regs.IP++
	return b
}

func (c *CPU) fetch16() uint16 {
	low := c.fetch8()
	high := c.fetch8()
	return uint16(high)<<8 | uint16(low)
}

// opcodeTest is test r/m8, r8 which the x86 opcode table does not describe.
const opcodeTest = 0x84

// step executes a single instruction and returns whether execution finished.
func (c *CPU) step() (bool, error) {
	address := c.pc().Linear()
	if !c.visited.Contains(address) {
		c.visited.Add(address)
		c.unique++
	}

	opcode := c.fetch8()
	if opcode == opcodeTest {
		return false, c.executeModRM(opcode)
	}
	op := x86.Opcodes[opcode]

	switch op.Instruction {
	case x86.MovRegImm8, x86.MovRegImm16:
		if op.Addressing != x86.ImmediateAddressing {
			return false, unsupportedOpcode(opcode)
		}
		register := int(opcode & 7)
		if op.Size == 2 {
			c.regs.SetReg8(register, c.fetch8())
		} else {
			c.regs.SetReg16(register, c.fetch16())
		}

	case x86.Jmp, x86.Jb, x86.Jnb, x86.Jz, x86.Jnz:
		if op.Size != 2 {
			return false, unsupportedOpcode(opcode)
		}
		c.jumpShort(op.Instruction)
	case x86.JmpFar:
		return c.jumpFar(), nil

	case x86.Nop:
	case x86.Cli:
		c.regs.SetFlag(machine.FlagInterrupt, false)
	case x86.Sti:
		c.regs.SetFlag(machine.FlagInterrupt, true)
	case x86.Cld:
		c.regs.SetFlag(machine.FlagDirection, false)
	case x86.Std:
		c.regs.SetFlag(machine.FlagDirection, true)
	case x86.Hlt:
		// without interrupts enabled nothing can resume the processor
		if !c.regs.Flag(machine.FlagInterrupt) {
			c.outcome = OutcomeHalted
			return true, nil
		}

	case x86.Lodsb:
		c.lodsb()
	case x86.Stosb:
		c.stosb()
	case x86.Repz:
		return false, c.repeat()

	case x86.XorALImm8:
		c.setLogicResult8(machine.AL, c.regs.Reg8(machine.AL)^c.fetch8())
	case x86.XorRMReg16, x86.MovRMReg8, x86.MovRegRM8, x86.MovMemImm16:
		return false, c.executeModRM(opcode)

	case x86.Int:
		if opcode != 0xcd {
			return false, unsupportedOpcode(opcode)
		}
		return false, c.interrupt(c.fetch8())

	default:
		return false, unsupportedOpcode(opcode)
	}
	return false, nil
}

// executeModRM executes the supported instructions with a ModR/M byte.
func (c *CPU) executeModRM(opcode byte) error {
	switch opcode {
	case 0x31, opcodeTest, 0x88, 0x8a, 0x8e:
	default:
		return unsupportedOpcode(opcode)
	}

	var modrm x86.ModRM
	modrm.FromByte(c.fetch8())
	reg := int(modrm.Reg)
	rm := int(modrm.RM)

	if modrm.Mod == 0 && modrm.RM == 6 { // [disp16] relative to DS
		address := machine.Address{Segment: c.regs.Segment(machine.DS), Offset: c.fetch16()}.Linear()
		switch opcode {
		case 0x88:
			c.mem.WriteMemory(address, c.regs.Reg8(reg))
			return nil
		case 0x8a:
			c.regs.SetReg8(reg, c.mem.ReadMemory(address))
			return nil
		}
	}
	if modrm.Mod != 3 || (opcode == 0x8e && reg > machine.DS) {
		return fmt.Errorf("%w with modrm 0x%02x", unsupportedOpcode(opcode), modrm.ToByte())
	}

	switch opcode {
	case 0x31: // xor r/m16, r16
		value := c.regs.Reg16(rm) ^ c.regs.Reg16(reg)
		c.regs.SetReg16(rm, value)
		c.setLogicFlags(value == 0)
	case opcodeTest:
		c.setLogicFlags(c.regs.Reg8(rm)&c.regs.Reg8(reg) == 0)
	case 0x88: // mov r/m8, r8
		c.regs.SetReg8(rm, c.regs.Reg8(reg))
	case 0x8a: // mov r8, r/m8
		c.regs.SetReg8(reg, c.regs.Reg8(rm))
	case 0x8e: // mov sreg, r/m16
		c.regs.SetSegment(reg, c.regs.Reg16(rm))
	}
	return nil
}

// unsupportedOpcode returns an error naming the instruction if the opcode table knows it.
func unsupportedOpcode(opcode byte) error {
	op := x86.Opcodes[opcode]
	if op.Instruction == nil {
		return fmt.Errorf("%w: 0x%02x", ErrUnsupportedOpcode, opcode)
	}
	return fmt.Errorf("%w: %s (0x%02x, %d bytes)", ErrUnsupportedOpcode, op.Instruction.Name, opcode, op.Size)
}

func (c *CPU) setLogicResult8(register int, value byte) {
	c.regs.SetReg8(register, value)
	c.setLogicFlags(value == 0)
}

func (c *CPU) setLogicFlags(zero bool) {
	c.regs.SetFlag(machine.FlagZero, zero)
	c.regs.SetFlag(machine.FlagCarry, false)
}

func (c *CPU) jumpShort(ins *x86.Instruction) {
	displacement := int8(c.fetch8())

	var taken bool
	switch ins {
	case x86.Jmp:
		taken = true
	case x86.Jb:
		taken = c.regs.Flag(machine.FlagCarry)
	case x86.Jnb:
		taken = !c.regs.Flag(machine.FlagCarry)
	case x86.Jz:
		taken = c.regs.Flag(machine.FlagZero)
	case x86.Jnz:
		taken = !c.regs.Flag(machine.FlagZero)
	}
	if taken {
		c.regs.IP += uint16(int16(displacement))
	}
}

// jumpFar performs a far jump and returns whether it leaves the boot sector.
func (c *CPU) jumpFar() bool {
	offset := c.fetch16()
	segment := c.fetch16()
	c.regs.SetSegment(machine.CS, segment)
	c.regs.IP = offset

	target := c.pc()
	linear := target.Linear()
	if linear >= c.bootStart && linear < c.bootEnd {
		return false
	}
	c.outcome = OutcomeExec
	c.entry = target
	return true
}

func (c *CPU) stringDelta() uint16 {
	if c.regs.Flag(machine.FlagDirection) {
		return 0xffff
	}
	return 1
}

func (c *CPU) lodsb() {
	source := machine.Address{Segment: c.regs.Segment(machine.DS), Offset: c.regs.Reg16(machine.SI)}
	c.regs.SetReg8(machine.AL, c.mem.ReadMemory(source.Linear()))
	c.regs.SetReg16(machine.SI, source.Offset+c.stringDelta())
}

func (c *CPU) stosb() {
	dest := machine.Address{Segment: c.regs.Segment(machine.ES), Offset: c.regs.Reg16(machine.DI)}
	c.mem.WriteMemory(dest.Linear(), c.regs.Reg8(machine.AL))
	c.regs.SetReg16(machine.DI, dest.Offset+c.stringDelta())
}

// repeat executes a string instruction with rep prefix CX times.
func (c *CPU) repeat() error {
	opcode := c.fetch8()

	var op func()
	switch opcode {
	case 0xaa:
		op = c.stosb
	case 0xac:
		op = c.lodsb
	default:
		return fmt.Errorf("rep prefix: %w", unsupportedOpcode(opcode))
	}

	for count := c.regs.Reg16(machine.CX); count > 0; count-- {
		op()
		c.regs.SetReg16(machine.CX, count-1)
	}
	return nil
}
