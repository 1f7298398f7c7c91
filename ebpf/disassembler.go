// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ebpf

import (
	"encoding/binary"
	"fmt"
	"log"
	"strconv"

	"github.com/ezrec/bpfasm/helper"
)

// DecodeWord decodes a single slot. The two slot wide loads are
// recognized by Decode; a lone OP_LDDW slot decodes as Unknown.
func DecodeWord(word Word) Instruction {
	class := word.Class()

	switch class {
	case CLASS_ALU, CLASS_ALU64:
		is64 := class.Is64()
		op := word.AluOp()
		switch {
		case op == ALU_OP_NEG:
			return UnaryAlu{Op: op, Is64: is64, Dst: word.Dst()}
		case op == ALU_OP_END:
			switch word.Imm {
			case 16, 32, 64:
				return Endian{Width: int(word.Imm), Is64: is64, BigEndian: word.Source(), Dst: word.Dst()}
			}
		case op.Binary():
			return BinaryAlu{Op: op, Is64: is64, Dst: word.Dst(), Src: sourceOperand(word)}
		}
	case CLASS_JMP:
		op := word.JmpOp()
		switch {
		case op == JMP_OP_JA:
			return JumpAlways{Offset: int32(word.Offset)}
		case op == JMP_OP_CALL:
			return Call{Helper: Immediate(word.Imm)}
		case op == JMP_OP_EXIT:
			return Exit{}
		case op.Compare():
			return JumpCompare{Op: op, Dst: word.Dst(), Rhs: sourceOperand(word), Offset: int32(word.Offset)}
		}
	case CLASS_LD:
		size := word.Size()
		if size == SIZE_DW {
			break
		}
		switch word.Mode() {
		case MODE_ABS:
			return PacketLoad{Size: size, Imm: Immediate(word.Imm)}
		case MODE_IND:
			return PacketLoad{Size: size, Indirect: true, Src: word.Src(), Imm: Immediate(word.Imm)}
		}
	case CLASS_LDX:
		if word.Mode() == MODE_MEM {
			return MemLoad{Size: word.Size(), Dst: word.Dst(), Src: MemRef{Base: word.Src(), Offset: int32(word.Offset)}}
		}
	case CLASS_ST:
		if word.Mode() == MODE_MEM {
			return MemStoreImm{Size: word.Size(), Dst: MemRef{Base: word.Dst(), Offset: int32(word.Offset)}, Value: Immediate(word.Imm)}
		}
	case CLASS_STX:
		dst := MemRef{Base: word.Dst(), Offset: int32(word.Offset)}
		switch size := word.Size(); word.Mode() {
		case MODE_MEM:
			return MemStoreReg{Size: size, Dst: dst, Src: word.Src()}
		case MODE_XADD:
			if size == SIZE_W || size == SIZE_DW {
				return AtomicAdd{Size: size, Dst: dst, Src: word.Src()}
			}
		}
	}

	return Unknown{Word: word}
}

// sourceOperand applies the source flag.
func sourceOperand(word Word) Operand {
	if word.Source() {
		return word.Src()
	}
	return Immediate(word.Imm)
}

// decodeWide decodes a wide load from its two slots. The second slot
// must have zero opcode, registers and offset.
func decodeWide(first, second Word) (inst Instruction, ok bool) {
	if second.Opcode != 0 || second.Regs != 0 || second.Offset != 0 || first.Offset != 0 {
		return
	}

	switch first.Src() {
	case 0:
		value := uint64(uint32(first.Imm)) | uint64(uint32(second.Imm))<<32
		return WideLoad{Dst: first.Dst(), Value: int64(value)}, true
	case PSEUDO_MAP_FD:
		if second.Imm != 0 {
			return
		}
		return LoadMapFd{Dst: first.Dst(), Fd: Immediate(first.Imm)}, true
	}

	return
}

// Decode converts a binary stream into instructions, one per emitted
// line; a wide load consumes two slots.
func Decode(data []byte) (insts []Instruction, err error) {
	if len(data)%WORD_SIZE != 0 {
		err = ErrStreamLength
		return
	}

	for offset := 0; offset < len(data); {
		word := ReadWord(data[offset:])
		if word.Opcode == OP_LDDW && offset+2*WORD_SIZE <= len(data) {
			inst, ok := decodeWide(word, ReadWord(data[offset+WORD_SIZE:]))
			if ok {
				insts = append(insts, inst)
				offset += 2 * WORD_SIZE
				continue
			}
		}
		insts = append(insts, DecodeWord(word))
		offset += WORD_SIZE
	}

	return
}

// Options control the rendering of canonical text.
type Options struct {
	Endian          EndianStyle   // Byte swap mnemonic convention.
	Helpers         *helper.Table // Names for CALL targets, may be nil.
	StrictHelpers   bool          // If set, a CALL missing from Helpers is an error.
	RelativeTargets bool          // If set, render jump offsets instead of targets.
	Annotate        bool          // If set, annotate LDDW with its low bytes as ASCII.
}

// Disassembler renders binary streams as canonical assembly text.
type Disassembler struct {
	Verbose bool // If set, verbosely logs each rendered line.
	Options
}

// Disassemble decodes a binary stream into one line per instruction.
func (dis *Disassembler) Disassemble(data []byte) (lines []string, err error) {
	insts, err := Decode(data)
	if err != nil {
		return
	}

	lines = make([]string, 0, len(insts))
	for pc, inst := range insts {
		var line string
		line, err = dis.Format(pc, inst)
		if err != nil {
			return nil, err
		}
		if dis.Verbose {
			log.Printf("%v: %v\n", pc, line)
		}
		lines = append(lines, line)
	}

	return
}

// target renders a jump destination relative to the following line.
func (dis *Disassembler) target(pc int, offset int32) string {
	target := pc + int(offset) + 1
	if dis.RelativeTargets || target < 0 {
		return fmt.Sprintf("%+d", offset)
	}
	return strconv.Itoa(target)
}

// Format renders a single instruction at line index pc.
func (dis *Disassembler) Format(pc int, inst Instruction) (line string, err error) {
	switch inst := inst.(type) {
	case UnaryAlu:
		line = fmt.Sprintf("%s %v", aluMnemonic(inst.Op, inst.Is64), inst.Dst)
	case BinaryAlu:
		if inst.Src == nil {
			return "", ErrOperandMissing
		}
		line = fmt.Sprintf("%s %v, %v", aluMnemonic(inst.Op, inst.Is64), inst.Dst, inst.Src)
	case Endian:
		line = fmt.Sprintf("%s %v", endianMnemonic(dis.Endian, inst.Width, inst.Is64, inst.BigEndian), inst.Dst)
	case MemLoad:
		line = fmt.Sprintf("%s %v, %v", memMnemonic(CLASS_LDX, MODE_MEM, inst.Size), inst.Dst, inst.Src)
	case MemStoreImm:
		line = fmt.Sprintf("%s %v, %v", memMnemonic(CLASS_ST, MODE_MEM, inst.Size), inst.Dst, inst.Value)
	case MemStoreReg:
		line = fmt.Sprintf("%s %v, %v", memMnemonic(CLASS_STX, MODE_MEM, inst.Size), inst.Dst, inst.Src)
	case AtomicAdd:
		line = fmt.Sprintf("%s %v, %v", memMnemonic(CLASS_STX, MODE_XADD, inst.Size), inst.Dst, inst.Src)
	case PacketLoad:
		if inst.Indirect {
			line = fmt.Sprintf("%s %v, %v", memMnemonic(CLASS_LD, MODE_IND, inst.Size), inst.Src, inst.Imm)
		} else {
			line = fmt.Sprintf("%s %v", memMnemonic(CLASS_LD, MODE_ABS, inst.Size), inst.Imm)
		}
	case WideLoad:
		line = fmt.Sprintf("LDDW %v, 0x%x", inst.Dst, uint64(inst.Value))
		if dis.Annotate {
			var low [4]byte
			binary.LittleEndian.PutUint32(low[:], uint32(inst.Value))
			line += "  # " + strconv.QuoteToASCII(string(low[:]))
		}
	case LoadMapFd:
		line = fmt.Sprintf("%s %v, %v", MNEMONIC_LDMAPFD, inst.Dst, inst.Fd)
	case JumpCompare:
		if inst.Rhs == nil {
			return "", ErrOperandMissing
		}
		line = fmt.Sprintf("%v %v, %v, %s", inst.Op, inst.Dst, inst.Rhs, dis.target(pc, inst.Offset))
	case JumpAlways:
		line = fmt.Sprintf("%v %s", JMP_OP_JA, dis.target(pc, inst.Offset))
	case Call:
		name, ok := dis.Helpers.Name(int64(inst.Helper))
		switch {
		case ok:
			line = fmt.Sprintf("%v %v <%s>", JMP_OP_CALL, inst.Helper, name)
		case dis.StrictHelpers:
			return "", &ErrHelper{Pc: pc, Helper: inst.Helper}
		default:
			line = fmt.Sprintf("%v %v", JMP_OP_CALL, inst.Helper)
		}
	case Exit:
		line = JMP_OP_EXIT.String()
	case Unknown:
		line = fmt.Sprintf("unknown instruction 0x%02x", inst.Word.Opcode)
	default:
		err = ErrOpInvalid
	}

	return
}
