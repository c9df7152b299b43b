package bootsector

import (
	"fmt"

	"github.com/retroenv/bootpack/internal/disk"
	"github.com/retroenv/bootpack/internal/loader"
	"github.com/retroenv/bootpack/internal/machine"
)

const bootDriveLabel = "boot_drive"

// generate emits the loader: INIT, DISK_READ, DECODE, EXEC and ERROR.
//
// Register usage during decoding: DS:SI points to the packed stream, ES:DI to
// the destination, CL holds the run length and AL the decoded value.
func generate(p *program, opts Options) {
	layout := opts.Layout

	p.label("start")
	p.op("cli", "INIT", 0xfa)
	p.memory("jmp 0x0000:init", "firmware may enter at 07C0:0000", "init", 1, 0xea, 0x00, 0x00, 0x00, 0x00)
	p.label("init")
	p.op("xor ax, ax", "", 0x31, 0xc0)
	p.op("mov ds, ax", "", 0x8e, 0xd8)
	p.op("mov es, ax", "", 0x8e, 0xc0)
	p.op("mov ss, ax", "", 0x8e, 0xd0)
	p.op(imm16("mov sp", layout.StackPointer), "stack grows down from here", mov16(machine.SP, layout.StackPointer)...)
	p.op("sti", "", 0xfb)
	p.memory("mov ["+bootDriveLabel+"], dl", "boot drive handed over by the firmware",
		bootDriveLabel, 2, 0x88, 0x16, 0x00, 0x00)
	debugChar(p, opts, loader.StageInitDone)

	p.label("read")
	p.op(imm16("mov ax", layout.Load.Segment), "DISK_READ", mov16(machine.AX, layout.Load.Segment)...)
	p.op("mov es, ax", "", 0x8e, 0xc0)
	p.op(imm16("mov bx", layout.Load.Offset), "ES:BX = load buffer", mov16(machine.BX, layout.Load.Offset)...)
	p.op("mov ah, 0x02", "read sectors", mov8(machine.AH, 0x02)...)
	p.op(imm8("mov al", layout.SectorCount), "sector count", mov8(machine.AL, layout.SectorCount)...)
	p.op("mov ch, 0x00", "cylinder", mov8(machine.CH, 0)...)
	p.op(imm8("mov cl", disk.PayloadSector), "sector", mov8(machine.CL, disk.PayloadSector)...)
	p.op("mov dh, 0x00", "head", mov8(machine.DH, 0)...)
	p.memory("mov dl, ["+bootDriveLabel+"]", "", bootDriveLabel, 2, 0x8a, 0x16, 0x00, 0x00)
	p.op("int 0x13", "", 0xcd, 0x13)
	p.rel8("jc", "error", "carry set on failure", 0x72)
	debugChar(p, opts, loader.StageDiskReadDone)

	p.op(imm16("mov ax", layout.Load.Segment), "DECODE", mov16(machine.AX, layout.Load.Segment)...)
	p.op("mov ds, ax", "", 0x8e, 0xd8)
	p.op(imm16("mov si", layout.Load.Offset), "DS:SI = packed stream", mov16(machine.SI, layout.Load.Offset)...)
	p.op(imm16("mov ax", layout.Destination.Segment), "", mov16(machine.AX, layout.Destination.Segment)...)
	p.op("mov es, ax", "", 0x8e, 0xc0)
	p.op(imm16("mov di", layout.Destination.Offset), "ES:DI = destination", mov16(machine.DI, layout.Destination.Offset)...)
	p.op("cld", "", 0xfc)
	p.op("xor cx, cx", "CH stays 0", 0x31, 0xc9)

	p.label("next")
	p.op("lodsb", "run length", 0xac)
	p.op("test al, al", "", 0x84, 0xc0)
	p.rel8("jz", "done", "end marker", 0x74)
	p.op("mov cl, al", "", 0x88, 0xc1)
	p.op("lodsb", "value", 0xac)
	p.op(imm8("xor al", opts.Key), "de-obfuscate", 0x34, opts.Key)
	p.op("rep stosb", "", 0xf3, 0xaa)
	p.rel8("jmp", "next", "", 0xeb)

	p.label("done")
	debugChar(p, opts, loader.StageDecodeDone)
	dest := layout.Destination
	p.op(fmt.Sprintf("jmp 0x%04x:0x%04x", dest.Segment, dest.Offset), "EXEC",
		0xea, byte(dest.Offset), byte(dest.Offset>>8), byte(dest.Segment), byte(dest.Segment>>8))

	p.label("error")
	debugChar(p, opts, loader.StageError)
	p.op("cli", "ERROR", 0xfa)
	p.label("halt")
	p.op("hlt", "", 0xf4)
	p.rel8("jmp", "halt", "", 0xeb)

	p.label(bootDriveLabel)
	p.op("db 0x00", "", 0x00)
}

// debugChar prints the stage character using the BIOS teletype service.
func debugChar(p *program, opts Options, stage loader.Stage) {
	if !opts.DebugChars {
		return
	}

	char := stage.Char()
	p.op("xor bx, bx", fmt.Sprintf("print '%c'", char), 0x31, 0xdb)
	p.op(fmt.Sprintf("mov ax, 0x0e%02x", char), "", 0xb8, char, 0x0e)
	p.op("int 0x10", "", 0xcd, 0x10)
}

func mov16(register int, value uint16) []byte {
	return []byte{0xb8 + byte(register), byte(value), byte(value >> 8)}
}

func mov8(register int, value byte) []byte {
	return []byte{0xb0 + byte(register), value}
}

func imm16(text string, value uint16) string {
	return fmt.Sprintf("%s, 0x%04x", text, value)
}

func imm8(text string, value byte) string {
	return fmt.Sprintf("%s, 0x%02x", text, value)
}
