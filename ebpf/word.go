package ebpf

import (
	"encoding/binary"
	"fmt"
)

// WORD_SIZE is the size in bytes of one instruction slot.
const WORD_SIZE = 8

// Word is a single 8-byte instruction slot.
type Word struct {
	Opcode uint8 // class | source | op, or class | size | mode
	Regs   uint8 // dst in the low nibble, src in the high nibble
	Offset int16 // signed offset
	Imm    int32 // signed immediate
}

// MakeWord packs the fields of an instruction slot.
func MakeWord(opcode uint8, dst, src Register, offset int16, imm int32) Word {
	return Word{
		Opcode: opcode,
		Regs:   uint8(dst&0xf) | uint8(src&0xf)<<4,
		Offset: offset,
		Imm:    imm,
	}
}

// ReadWord unpacks the little-endian slot at the start of data, which
// must hold at least WORD_SIZE bytes.
func ReadWord(data []byte) Word {
	return Word{
		Opcode: data[0],
		Regs:   data[1],
		Offset: int16(binary.LittleEndian.Uint16(data[2:4])),
		Imm:    int32(binary.LittleEndian.Uint32(data[4:8])),
	}
}

// AppendBinary appends the little-endian encoding of the slot.
func (word Word) AppendBinary(data []byte) ([]byte, error) {
	data = append(data, word.Opcode, word.Regs)
	data = binary.LittleEndian.AppendUint16(data, uint16(word.Offset))
	data = binary.LittleEndian.AppendUint32(data, uint32(word.Imm))
	return data, nil
}

// Uint64 returns the slot as a little-endian 64-bit value.
func (word Word) Uint64() uint64 {
	return uint64(word.Opcode) |
		uint64(word.Regs)<<8 |
		uint64(uint16(word.Offset))<<16 |
		uint64(uint32(word.Imm))<<32
}

// Class returns the instruction class.
func (word Word) Class() Class {
	return Class(word.Opcode & OPCODE_CLASS_MASK)
}

// Source returns true if the src register is the operand.
func (word Word) Source() bool {
	return word.Opcode&SOURCE_REG != 0
}

// AluOp returns the ALU operation of an ALU class opcode.
func (word Word) AluOp() AluOp {
	return AluOp(word.Opcode >> 4)
}

// JmpOp returns the jump operation of a JMP class opcode.
func (word Word) JmpOp() JmpOp {
	return JmpOp(word.Opcode >> 4)
}

// Size returns the access size of a memory class opcode.
func (word Word) Size() Size {
	return Size((word.Opcode & OPCODE_SIZE_MASK) >> 3)
}

// Mode returns the addressing mode of a memory class opcode.
func (word Word) Mode() Mode {
	return Mode(word.Opcode >> 5)
}

// Dst returns the destination register.
func (word Word) Dst() Register {
	return Register(word.Regs & 0xf)
}

// Src returns the source register.
func (word Word) Src() Register {
	return Register(word.Regs >> 4)
}

// String returns the raw fields, for diagnostics.
func (word Word) String() string {
	return fmt.Sprintf("%02x %02x %04x %08x", word.Opcode, word.Regs, uint16(word.Offset), uint32(word.Imm))
}
