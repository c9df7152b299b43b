package emulator

import (
	"errors"
	"fmt"

	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/retrogolib/log"
)

// BIOS interrupt vectors and functions.
const (
	vectorVideo = 0x10
	vectorDisk  = 0x13

	videoTeletype   = 0x0e
	diskReadSectors = 0x02
)

// int 0x13 status codes returned in AH.
const (
	statusSuccess        = 0x00
	statusSectorNotFound = 0x04
	statusNotReady       = 0xaa
)

func (c *CPU) interrupt(vector byte) error {
	switch vector {
	case vectorVideo:
		return c.videoService()
	case vectorDisk:
		return c.diskService()
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnsupportedInterrupt, vector)
	}
}

func (c *CPU) videoService() error {
	function := c.regs.Reg8(machine.AH)
	if function != videoTeletype {
		return fmt.Errorf("%w: 0x%02x function 0x%02x", ErrUnsupportedInterrupt, vectorVideo, function)
	}

	c.bios.Teletype(c.regs.Reg8(machine.AL))
	return nil
}

// diskService implements the CHS sector read. Errors are reported to the
// boot code through the carry flag and the status in AH.
func (c *CPU) diskService() error {
	function := c.regs.Reg8(machine.AH)
	if function != diskReadSectors {
		return fmt.Errorf("%w: 0x%02x function 0x%02x", ErrUnsupportedInterrupt, vectorDisk, function)
	}

	cl := c.regs.Reg8(machine.CL)
	chs := disk.CHS{
		Cylinder: uint16(c.regs.Reg8(machine.CH)) | uint16(cl&0xc0)<<2,
		Head:     c.regs.Reg8(machine.DH),
		Sector:   cl & 0x3f,
	}
	count := c.regs.Reg8(machine.AL)
	drive := c.regs.Reg8(machine.DL)
	dest := machine.Address{Segment: c.regs.Segment(machine.ES), Offset: c.regs.Reg16(machine.BX)}

	if err := c.bios.ReadSectors(drive, chs, count, c.mem, dest.Linear()); err != nil {
		status := byte(statusNotReady)
		if errors.Is(err, disk.ErrOutOfRange) {
			status = statusSectorNotFound
		}
		c.logger.Debug("Disk read failed",
			log.Stringer("chs", chs),
			log.Uint8("count", count),
			log.Hex("status", status),
			log.Err(err))

		c.regs.SetReg8(machine.AH, status)
		c.regs.SetReg8(machine.AL, 0)
		c.regs.SetFlag(machine.FlagCarry, true)
		return nil
	}

	c.regs.SetReg8(machine.AH, statusSuccess)
	c.regs.SetFlag(machine.FlagCarry, false)
	return nil
}
