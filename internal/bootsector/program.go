package bootsector

import (
	"encoding/binary"
	"fmt"
)

// instruction is a single machine instruction or data definition together
// with its assembler source representation.
type instruction struct {
	label   string // label defined at this instruction
	code    []byte
	text    string
	comment string
	offset  int

	target string // label of a rel8 displacement stored in the last code byte

	absolute   string // label whose absolute address is stored at absoluteAt
	absoluteAt int
}

// program collects instructions and resolves labels in a second pass.
type program struct {
	origin       uint16
	instructions []*instruction
	pending      string
}

func newProgram(origin uint16) *program {
	return &program{
		origin: origin,
	}
}

// label defines a label at the next emitted instruction.
func (p *program) label(name string) {
	p.pending = name
}

func (p *program) add(ins *instruction) *instruction {
	ins.label = p.pending
	p.pending = ""
	p.instructions = append(p.instructions, ins)
	return ins
}

// op emits an instruction with a fixed encoding.
func (p *program) op(text, comment string, code ...byte) {
	p.add(&instruction{
		code:    code,
		text:    text,
		comment: comment,
	})
}

// rel8 emits a short jump with an 8-bit displacement to the target label.
func (p *program) rel8(mnemonic, target, comment string, opcode byte) {
	p.add(&instruction{
		code:    []byte{opcode, 0},
		text:    fmt.Sprintf("%s short %s", mnemonic, target),
		comment: comment,
		target:  target,
	})
}

// memory emits an instruction referencing the absolute address of a label
// as 16-bit displacement at the given code position.
func (p *program) memory(text, comment, label string, at int, code ...byte) {
	p.add(&instruction{
		code:       code,
		text:       text,
		comment:    comment,
		absolute:   label,
		absoluteAt: at,
	})
}

// assemble resolves all label references and returns the machine code.
func (p *program) assemble() ([]byte, error) {
	labels := make(map[string]int)
	var size int
	for _, ins := range p.instructions {
		ins.offset = size
		size += len(ins.code)
		if ins.label == "" {
			continue
		}
		if _, ok := labels[ins.label]; ok {
			return nil, fmt.Errorf("duplicate label '%s'", ins.label)
		}
		labels[ins.label] = ins.offset
	}

	code := make([]byte, 0, size)
	for _, ins := range p.instructions {
		if ins.target != "" {
			target, ok := labels[ins.target]
			if !ok {
				return nil, fmt.Errorf("unknown label '%s'", ins.target)
			}
			displacement := target - (ins.offset + len(ins.code))
			if displacement < -128 || displacement > 127 {
				return nil, fmt.Errorf("%w: '%s' is %d bytes away", ErrJumpRange, ins.target, displacement)
			}
			ins.code[len(ins.code)-1] = byte(int8(displacement))
		}

		if ins.absolute != "" {
			target, ok := labels[ins.absolute]
			if !ok {
				return nil, fmt.Errorf("unknown label '%s'", ins.absolute)
			}
			binary.LittleEndian.PutUint16(ins.code[ins.absoluteAt:], p.origin+uint16(target))
		}

		code = append(code, ins.code...)
	}
	return code, nil
}
