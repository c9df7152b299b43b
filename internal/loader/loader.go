// Package loader implements the boot sequence of the first stage loader as a
// state machine: INIT → DISK_READ → DECODE → EXEC, with a terminal ERROR state
// that is entered when the disk read fails.
//
// All memory locations are taken from a machine.Layout, and the firmware is
// accessed through the machine.BIOS interface, so the sequence can run against
// any memory placement and a simulated firmware.
package loader

import (
	"fmt"

	"github.com/retroenv/bootpack/internal/decoder"
	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/machine"
	"github.com/retroenv/retrogolib/log"
)

// Config defines the boot sequence parameters.
type Config struct {
	Layout   machine.Layout
	Key      byte
	Observer Observer // optional
}

// Result describes the outcome of a boot sequence.
type Result struct {
	State   State
	Drive   byte            // boot drive recorded during init
	Entry   machine.Address // entry point control was transferred to
	Written int             // number of decoded bytes
	Err     error           // disk read error that caused the error state
}

// Loader runs the boot sequence on a machine.
type Loader struct {
	logger   *log.Logger
	layout   machine.Layout
	key      byte
	observer Observer
	mem      *machine.Memory
	bios     machine.BIOS

	state   State
	regs    machine.Registers
	drive   byte
	written int
	err     error
}

// New returns a new loader for the given memory and firmware.
func New(logger *log.Logger, cfg Config, mem *machine.Memory, bios machine.BIOS) (*Loader, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver
	}

	return &Loader{
		logger:   logger,
		layout:   cfg.Layout,
		key:      cfg.Key,
		observer: observer,
		mem:      mem,
		bios:     bios,
		state:    StateInit,
	}, nil
}

// State returns the current state.
func (l *Loader) State() State {
	return l.state
}

// Registers returns the current register values.
func (l *Loader) Registers() machine.Registers {
	return l.regs
}

// Handoff places the boot drive number in DL the way the firmware does
// before it enters the loader. It has to be called before the first Step.
func (l *Loader) Handoff(drive byte) {
	l.regs.SetReg8(machine.DL, drive)
}

// Boot runs the boot sequence until a terminal state is reached. The drive
// is the boot drive number handed over by the firmware.
func (l *Loader) Boot(drive byte) Result {
	l.Handoff(drive)

	for !l.state.Terminal() {
		l.Step()
	}

	result := Result{
		State:   l.state,
		Drive:   l.drive,
		Written: l.written,
		Err:     l.err,
	}
	if l.state == StateExec {
		result.Entry = l.layout.Destination
	}
	return result
}

// Step executes the current state and moves to the next one.
func (l *Loader) Step() {
	switch l.state {
	case StateInit:
		l.init()
		l.transition(StateDiskRead, StageInitDone)

	case StateDiskRead:
		if err := l.diskRead(); err != nil {
			l.logger.Debug("Disk read failed", log.Err(err))
			l.err = err
			l.halt()
			l.transition(StateError, StageError)
			return
		}
		l.transition(StateDecode, StageDiskReadDone)

	case StateDecode:
		l.decode()
		l.transition(StateExec, StageDecodeDone)
		l.exec()

	case StateExec, StateError:
	}
}

func (l *Loader) transition(next State, stage Stage) {
	l.logger.Debug("Boot stage",
		log.Stringer("stage", stage),
		log.Stringer("next", next))
	l.state = next
	l.observer(stage)
}

// init sets up segments and stack with interrupts disabled and records the
// boot drive, which is only valid in DL at handoff. CS is zeroed as well since
// the firmware may enter at 07C0:0000 instead of 0000:7C00.
func (l *Loader) init() {
	l.regs.SetFlag(machine.FlagInterrupt, false)
	for _, segment := range []int{machine.CS, machine.DS, machine.ES, machine.SS} {
		l.regs.SetSegment(segment, 0)
	}
	l.regs.SetReg16(machine.SP, l.layout.StackPointer)
	l.regs.SetFlag(machine.FlagInterrupt, true)

	l.drive = l.regs.Reg8(machine.DL)
}

func (l *Loader) diskRead() error {
	chs := disk.CHS{Cylinder: 0, Head: 0, Sector: disk.PayloadSector}
	l.regs.SetSegment(machine.ES, l.layout.Load.Segment)
	l.regs.SetReg16(machine.BX, l.layout.Load.Offset)

	err := l.bios.ReadSectors(l.drive, chs, l.layout.SectorCount, l.mem, l.layout.Load.Linear())
	l.regs.SetFlag(machine.FlagCarry, err != nil)
	if err != nil {
		return fmt.Errorf("reading %d sectors at %s: %w", l.layout.SectorCount, chs, err)
	}
	return nil
}

func (l *Loader) decode() {
	state := decoder.New(l.layout.Load.Linear(), l.layout.Destination.Linear(), l.key)
	l.written = state.Run(l.mem)

	l.regs.SetSegment(machine.DS, l.layout.Load.Segment)
	l.regs.SetSegment(machine.ES, l.layout.Destination.Segment)
	l.regs.SetReg16(machine.SI, l.layout.Load.Offset+uint16(state.Source-l.layout.Load.Linear()))
	l.regs.SetReg16(machine.DI, l.layout.Destination.Offset+uint16(l.written))
	l.regs.SetReg16(machine.CX, 0)
}

// exec performs the far jump to the decoded payload.
func (l *Loader) exec() {
	l.regs.SetSegment(machine.CS, l.layout.Destination.Segment)
	l.regs.IP = l.layout.Destination.Offset
}

func (l *Loader) halt() {
	l.regs.SetFlag(machine.FlagInterrupt, false)
}
