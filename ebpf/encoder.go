package ebpf

import (
	"math"
	"slices"
)

// checkReg verifies a register fits its nibble.
func checkReg(regs ...Register) error {
	for _, reg := range regs {
		if reg > REG_MAX {
			return ErrRegisterRange
		}
	}
	return nil
}

// checkOffset verifies an offset fits the signed 16-bit field.
func checkOffset(offset int32) (int16, error) {
	if offset < math.MinInt16 || offset > math.MaxInt16 {
		return 0, ErrOffsetRange
	}
	return int16(offset), nil
}

// checkImm wraps an immediate into the 32-bit field.
func checkImm(imm Immediate) (int32, error) {
	if imm < math.MinInt32 || imm > math.MaxUint32 {
		return 0, ErrImmediateRange
	}
	return int32(uint32(imm)), nil
}

// EncodeWords packs an instruction into its slots.
func EncodeWords(inst Instruction) (words []Word, err error) {
	var word Word

	switch inst := inst.(type) {
	case UnaryAlu:
		if inst.Op != ALU_OP_NEG {
			return nil, ErrOpInvalid
		}
		if err = checkReg(inst.Dst); err != nil {
			return
		}
		word = MakeWord(MakeAluOpcode(aluClass(inst.Is64), inst.Op, false), inst.Dst, 0, 0, 0)
	case BinaryAlu:
		if !inst.Op.Binary() {
			return nil, ErrOpInvalid
		}
		word, err = encodeOperand(MakeAluOpcode(aluClass(inst.Is64), inst.Op, false), inst.Dst, inst.Src, 0)
		if err != nil {
			return
		}
	case Endian:
		if !slices.Contains(endianWidths, inst.Width) {
			return nil, ErrWidthInvalid
		}
		if err = checkReg(inst.Dst); err != nil {
			return
		}
		word = MakeWord(MakeAluOpcode(aluClass(inst.Is64), ALU_OP_END, inst.BigEndian), inst.Dst, 0, 0, int32(inst.Width))
	case MemLoad:
		word, err = encodeMem(CLASS_LDX, MODE_MEM, inst.Size, inst.Dst, inst.Src.Base, inst.Src.Offset, 0)
		if err != nil {
			return
		}
	case MemStoreImm:
		word, err = encodeMem(CLASS_ST, MODE_MEM, inst.Size, inst.Dst.Base, 0, inst.Dst.Offset, inst.Value)
		if err != nil {
			return
		}
	case MemStoreReg:
		word, err = encodeMem(CLASS_STX, MODE_MEM, inst.Size, inst.Dst.Base, inst.Src, inst.Dst.Offset, 0)
		if err != nil {
			return
		}
	case AtomicAdd:
		if inst.Size != SIZE_W && inst.Size != SIZE_DW {
			return nil, ErrSizeInvalid
		}
		word, err = encodeMem(CLASS_STX, MODE_XADD, inst.Size, inst.Dst.Base, inst.Src, inst.Dst.Offset, 0)
		if err != nil {
			return
		}
	case PacketLoad:
		if inst.Size == SIZE_DW {
			return nil, ErrSizeInvalid
		}
		mode := MODE_ABS
		src := Register(0)
		if inst.Indirect {
			mode = MODE_IND
			src = inst.Src
		}
		word, err = encodeMem(CLASS_LD, mode, inst.Size, 0, src, 0, inst.Imm)
		if err != nil {
			return
		}
	case WideLoad:
		if err = checkReg(inst.Dst); err != nil {
			return
		}
		value := uint64(inst.Value)
		return []Word{
			MakeWord(OP_LDDW, inst.Dst, 0, 0, int32(uint32(value))),
			MakeWord(0, 0, 0, 0, int32(uint32(value>>32))),
		}, nil
	case LoadMapFd:
		if err = checkReg(inst.Dst); err != nil {
			return
		}
		var fd int32
		if fd, err = checkImm(inst.Fd); err != nil {
			return
		}
		return []Word{
			MakeWord(OP_LDDW, inst.Dst, PSEUDO_MAP_FD, 0, fd),
			MakeWord(0, 0, 0, 0, 0),
		}, nil
	case JumpCompare:
		if !inst.Op.Compare() {
			return nil, ErrOpInvalid
		}
		word, err = encodeOperand(MakeJmpOpcode(inst.Op, false), inst.Dst, inst.Rhs, inst.Offset)
		if err != nil {
			return
		}
	case JumpAlways:
		var offset int16
		if offset, err = checkOffset(inst.Offset); err != nil {
			return
		}
		word = MakeWord(OP_JA, 0, 0, offset, 0)
	case Call:
		var imm int32
		if imm, err = checkImm(inst.Helper); err != nil {
			return
		}
		word = MakeWord(OP_CALL, 0, 0, 0, imm)
	case Exit:
		word = MakeWord(OP_EXIT, 0, 0, 0, 0)
	case Unknown:
		word = inst.Word
	default:
		return nil, ErrOpInvalid
	}

	return []Word{word}, nil
}

// encodeOperand dispatches a Register or Immediate right hand side.
func encodeOperand(opcode uint8, dst Register, rhs Operand, offset int32) (word Word, err error) {
	off, err := checkOffset(offset)
	if err != nil {
		return
	}

	switch rhs := rhs.(type) {
	case Register:
		if err = checkReg(dst, rhs); err != nil {
			return
		}
		word = MakeWord(opcode|SOURCE_REG, dst, rhs, off, 0)
	case Immediate:
		if err = checkReg(dst); err != nil {
			return
		}
		var imm int32
		if imm, err = checkImm(rhs); err != nil {
			return
		}
		word = MakeWord(opcode, dst, 0, off, imm)
	default:
		err = ErrOperandMissing
	}

	return
}

// encodeMem packs a load or store slot.
func encodeMem(class Class, mode Mode, size Size, dst, src Register, offset int32, value Immediate) (word Word, err error) {
	if !size.Valid() {
		err = ErrSizeInvalid
		return
	}
	if err = checkReg(dst, src); err != nil {
		return
	}
	off, err := checkOffset(offset)
	if err != nil {
		return
	}
	imm, err := checkImm(value)
	if err != nil {
		return
	}

	word = MakeWord(MakeMemOpcode(class, size, mode), dst, src, off, imm)

	return
}

// AppendInstruction appends the encoding of inst to data.
func AppendInstruction(data []byte, inst Instruction) ([]byte, error) {
	words, err := EncodeWords(inst)
	if err != nil {
		return data, err
	}

	for _, word := range words {
		data, _ = word.AppendBinary(data)
	}

	return data, nil
}

// Encode converts a sequence of instructions into the binary stream.
func Encode(insts []Instruction) (data []byte, err error) {
	data = make([]byte, 0, WORD_SIZE*SlotCount(insts))

	for n, inst := range insts {
		data, err = AppendInstruction(data, inst)
		if err != nil {
			return nil, &ErrEncode{Index: n, Err: err}
		}
	}

	return
}
