package ebpf

import (
	"fmt"
	"maps"
	"slices"
)

// Class is the instruction class, the low three bits of the opcode byte.
type Class uint8

const (
	CLASS_LD    = Class(0) // LD
	CLASS_LDX   = Class(1) // LDX
	CLASS_ST    = Class(2) // ST
	CLASS_STX   = Class(3) // STX
	CLASS_ALU   = Class(4) // ALU
	CLASS_JMP   = Class(5) // JMP
	CLASS_JMP32 = Class(6) // JMP32 (not supported)
	CLASS_ALU64 = Class(7) // ALU64
)

var className = [...]string{"LD", "LDX", "ST", "STX", "ALU", "JMP", "JMP32", "ALU64"}

func (class Class) String() string {
	if int(class) < len(className) {
		return className[class]
	}
	return fmt.Sprintf("Class(%d)", uint8(class))
}

// Is64 returns true for the 64-bit ALU class.
func (class Class) Is64() bool {
	return class == CLASS_ALU64
}

// aluClass selects the ALU class for the operand width.
func aluClass(is64 bool) Class {
	if is64 {
		return CLASS_ALU64
	}
	return CLASS_ALU
}

const (
	SOURCE_IMM = 0x00 // Operand is the immediate field.
	SOURCE_REG = 0x08 // Operand is the src register.

	OPCODE_CLASS_MASK = 0x07
	OPCODE_SIZE_MASK  = 0x18
	OPCODE_MODE_MASK  = 0xe0
	OPCODE_OP_MASK    = 0xf0
)

// AluOp is an ALU operation, shared by the 32-bit and 64-bit classes.
type AluOp uint8

const (
	ALU_OP_ADD  = AluOp(0x0)
	ALU_OP_SUB  = AluOp(0x1)
	ALU_OP_MUL  = AluOp(0x2)
	ALU_OP_DIV  = AluOp(0x3)
	ALU_OP_OR   = AluOp(0x4)
	ALU_OP_AND  = AluOp(0x5)
	ALU_OP_LSH  = AluOp(0x6)
	ALU_OP_RSH  = AluOp(0x7)
	ALU_OP_NEG  = AluOp(0x8)
	ALU_OP_MOD  = AluOp(0x9)
	ALU_OP_XOR  = AluOp(0xa)
	ALU_OP_MOV  = AluOp(0xb)
	ALU_OP_ARSH = AluOp(0xc)
	ALU_OP_END  = AluOp(0xd)
)

var aluOpName = map[AluOp]string{
	ALU_OP_ADD:  "ADD",
	ALU_OP_SUB:  "SUB",
	ALU_OP_MUL:  "MUL",
	ALU_OP_DIV:  "DIV",
	ALU_OP_OR:   "OR",
	ALU_OP_AND:  "AND",
	ALU_OP_LSH:  "LSH",
	ALU_OP_RSH:  "RSH",
	ALU_OP_NEG:  "NEG",
	ALU_OP_MOD:  "MOD",
	ALU_OP_XOR:  "XOR",
	ALU_OP_MOV:  "MOV",
	ALU_OP_ARSH: "ARSH",
	ALU_OP_END:  "END",
}

func (op AluOp) String() string {
	name, ok := aluOpName[op]
	if !ok {
		return fmt.Sprintf("AluOp(%d)", uint8(op))
	}
	return name
}

// Binary returns true if the operation takes a source operand.
func (op AluOp) Binary() bool {
	_, ok := aluOpName[op]
	return ok && op != ALU_OP_NEG && op != ALU_OP_END
}

// JmpOp is a jump class operation.
type JmpOp uint8

const (
	JMP_OP_JA   = JmpOp(0x0)
	JMP_OP_JEQ  = JmpOp(0x1)
	JMP_OP_JGT  = JmpOp(0x2)
	JMP_OP_JGE  = JmpOp(0x3)
	JMP_OP_JSET = JmpOp(0x4)
	JMP_OP_JNE  = JmpOp(0x5)
	JMP_OP_JSGT = JmpOp(0x6)
	JMP_OP_JSGE = JmpOp(0x7)
	JMP_OP_CALL = JmpOp(0x8)
	JMP_OP_EXIT = JmpOp(0x9)
	JMP_OP_JLT  = JmpOp(0xa)
	JMP_OP_JLE  = JmpOp(0xb)
	JMP_OP_JSLT = JmpOp(0xc)
	JMP_OP_JSLE = JmpOp(0xd)
)

var jmpOpName = map[JmpOp]string{
	JMP_OP_JA:   "JA",
	JMP_OP_JEQ:  "JEQ",
	JMP_OP_JGT:  "JGT",
	JMP_OP_JGE:  "JGE",
	JMP_OP_JSET: "JSET",
	JMP_OP_JNE:  "JNE",
	JMP_OP_JSGT: "JSGT",
	JMP_OP_JSGE: "JSGE",
	JMP_OP_CALL: "CALL",
	JMP_OP_EXIT: "EXIT",
	JMP_OP_JLT:  "JLT",
	JMP_OP_JLE:  "JLE",
	JMP_OP_JSLT: "JSLT",
	JMP_OP_JSLE: "JSLE",
}

func (op JmpOp) String() string {
	name, ok := jmpOpName[op]
	if !ok {
		return fmt.Sprintf("JmpOp(%d)", uint8(op))
	}
	return name
}

// Compare returns true for the conditional jumps.
func (op JmpOp) Compare() bool {
	_, ok := jmpOpName[op]
	return ok && op != JMP_OP_JA && op != JMP_OP_CALL && op != JMP_OP_EXIT
}

// Size is a memory access width, bits 3-4 of a memory opcode.
type Size uint8

const (
	SIZE_W  = Size(0) // 32 bits
	SIZE_H  = Size(1) // 16 bits
	SIZE_B  = Size(2) // 8 bits
	SIZE_DW = Size(3) // 64 bits
)

var sizeName = [...]string{"W", "H", "B", "DW"}
var sizeBytes = [...]int{4, 2, 1, 8}

func (size Size) String() string {
	if size.Valid() {
		return sizeName[size]
	}
	return fmt.Sprintf("Size(%d)", uint8(size))
}

// Valid returns true if the size is encodable.
func (size Size) Valid() bool {
	return int(size) < len(sizeName)
}

// Bytes returns the access width in bytes.
func (size Size) Bytes() int {
	if size.Valid() {
		return sizeBytes[size]
	}
	return 0
}

// Mode is a memory addressing mode, bits 5-7 of a memory opcode.
type Mode uint8

const (
	MODE_IMM  = Mode(0)
	MODE_ABS  = Mode(1)
	MODE_IND  = Mode(2)
	MODE_MEM  = Mode(3)
	MODE_XADD = Mode(6)
)

const (
	// OP_LDDW loads a 64-bit immediate spread over two slots.
	OP_LDDW = uint8(CLASS_LD) | uint8(SIZE_DW)<<3 | uint8(MODE_IMM)<<5
	OP_JA   = uint8(CLASS_JMP) | uint8(JMP_OP_JA)<<4
	OP_CALL = uint8(CLASS_JMP) | uint8(JMP_OP_CALL)<<4
	OP_EXIT = uint8(CLASS_JMP) | uint8(JMP_OP_EXIT)<<4

	// PSEUDO_MAP_FD in the src nibble of OP_LDDW marks a map descriptor load.
	PSEUDO_MAP_FD = Register(1)
)

// MakeAluOpcode builds an ALU opcode byte.
func MakeAluOpcode(class Class, op AluOp, source bool) uint8 {
	code := uint8(class) | uint8(op)<<4
	if source {
		code |= SOURCE_REG
	}
	return code
}

// MakeJmpOpcode builds a jump opcode byte.
func MakeJmpOpcode(op JmpOp, source bool) uint8 {
	code := uint8(CLASS_JMP) | uint8(op)<<4
	if source {
		code |= SOURCE_REG
	}
	return code
}

// MakeMemOpcode builds a load or store opcode byte.
func MakeMemOpcode(class Class, size Size, mode Mode) uint8 {
	return uint8(class) | uint8(size)<<3 | uint8(mode)<<5
}

// EndianStyle selects one of the two historical renderings of the
// byte swap instructions.
type EndianStyle int

const (
	// ENDIAN_SUFFIX renders END16 and END64_16, ignoring the source bit.
	ENDIAN_SUFFIX = EndianStyle(0)
	// ENDIAN_BE_LE renders LE16 and BE16 from the source bit, and
	// BSWAP16 for the 64-bit class.
	ENDIAN_BE_LE = EndianStyle(1)
)

var endianStyleName = map[EndianStyle]string{
	ENDIAN_SUFFIX: "suffix",
	ENDIAN_BE_LE:  "be_le",
}

func (style EndianStyle) String() string {
	name, ok := endianStyleName[style]
	if !ok {
		return fmt.Sprintf("EndianStyle(%d)", int(style))
	}
	return name
}

// ParseEndianStyle returns the style with the given name.
func ParseEndianStyle(name string) (style EndianStyle, err error) {
	for style, style_name := range endianStyleName {
		if style_name == name {
			return style, nil
		}
	}
	err = ErrEndianStyle(name)
	return
}

var endianWidths = []int{16, 32, 64}

// aluMnemonic names an ALU operation for a class width.
func aluMnemonic(op AluOp, is64 bool) string {
	if is64 {
		return op.String() + "64"
	}
	return op.String()
}

// endianMnemonic names a byte swap in the given style.
func endianMnemonic(style EndianStyle, width int, is64 bool, big bool) string {
	if style == ENDIAN_BE_LE {
		switch {
		case is64:
			return fmt.Sprintf("BSWAP%d", width)
		case big:
			return fmt.Sprintf("BE%d", width)
		default:
			return fmt.Sprintf("LE%d", width)
		}
	}

	if is64 {
		return fmt.Sprintf("END64_%d", width)
	}
	return fmt.Sprintf("END%d", width)
}

// memMnemonic names a memory instruction, or returns "" if the
// class, mode and size combination is not supported.
func memMnemonic(class Class, mode Mode, size Size) string {
	if !size.Valid() {
		return ""
	}

	switch {
	case class == CLASS_LDX && mode == MODE_MEM:
		return "LDX" + size.String()
	case class == CLASS_ST && mode == MODE_MEM:
		return "ST" + size.String()
	case class == CLASS_STX && mode == MODE_MEM:
		return "STX" + size.String()
	case class == CLASS_STX && mode == MODE_XADD && (size == SIZE_W || size == SIZE_DW):
		return "XADD" + size.String()
	case class == CLASS_LD && mode == MODE_ABS && size != SIZE_DW:
		return "LDABS" + size.String()
	case class == CLASS_LD && mode == MODE_IND && size != SIZE_DW:
		return "LDIND" + size.String()
	case class == CLASS_LD && mode == MODE_IMM && size == SIZE_DW:
		return "LDDW"
	}

	return ""
}

const MNEMONIC_LDMAPFD = "LDMAPFD"

// family is the operand grammar selected by a mnemonic.
type family int

const (
	FAMILY_UNARY_ALU family = iota
	FAMILY_BINARY_ALU
	FAMILY_ENDIAN
	FAMILY_LOAD
	FAMILY_STORE_IMM
	FAMILY_STORE_REG
	FAMILY_ATOMIC_ADD
	FAMILY_PACKET_ABS
	FAMILY_PACKET_IND
	FAMILY_WIDE_LOAD
	FAMILY_MAP_FD
	FAMILY_JUMP_COMPARE
	FAMILY_JUMP_ALWAYS
	FAMILY_CALL
	FAMILY_EXIT
)

// mnemonic describes the fields an assembly mnemonic selects.
type mnemonic struct {
	family    family
	aluOp     AluOp
	jmpOp     JmpOp
	is64      bool
	size      Size
	width     int
	bigEndian bool
}

// mnemonicMap indexes every accepted mnemonic. It is generated from
// the same naming functions the disassembler renders with.
var mnemonicMap = buildMnemonics()

func buildMnemonics() map[string]mnemonic {
	table := map[string]mnemonic{}

	add := func(name string, m mnemonic) {
		if _, dup := table[name]; dup {
			panic("ebpf: duplicate mnemonic " + name)
		}
		table[name] = m
	}

	for _, is64 := range []bool{false, true} {
		for _, op := range slices.Sorted(maps.Keys(aluOpName)) {
			switch {
			case op == ALU_OP_NEG:
				add(aluMnemonic(op, is64), mnemonic{family: FAMILY_UNARY_ALU, aluOp: op, is64: is64})
			case op.Binary():
				add(aluMnemonic(op, is64), mnemonic{family: FAMILY_BINARY_ALU, aluOp: op, is64: is64})
			}
		}
		for _, width := range endianWidths {
			m := mnemonic{family: FAMILY_ENDIAN, aluOp: ALU_OP_END, is64: is64, width: width}
			add(endianMnemonic(ENDIAN_SUFFIX, width, is64, false), m)
			add(endianMnemonic(ENDIAN_BE_LE, width, is64, false), m)
			if !is64 {
				m.bigEndian = true
				add(endianMnemonic(ENDIAN_BE_LE, width, is64, true), m)
			}
		}
	}

	memFamily := []struct {
		class  Class
		mode   Mode
		family family
	}{
		{CLASS_LDX, MODE_MEM, FAMILY_LOAD},
		{CLASS_ST, MODE_MEM, FAMILY_STORE_IMM},
		{CLASS_STX, MODE_MEM, FAMILY_STORE_REG},
		{CLASS_STX, MODE_XADD, FAMILY_ATOMIC_ADD},
		{CLASS_LD, MODE_ABS, FAMILY_PACKET_ABS},
		{CLASS_LD, MODE_IND, FAMILY_PACKET_IND},
		{CLASS_LD, MODE_IMM, FAMILY_WIDE_LOAD},
	}
	for _, mf := range memFamily {
		for size := SIZE_W; size <= SIZE_DW; size++ {
			name := memMnemonic(mf.class, mf.mode, size)
			if name != "" {
				add(name, mnemonic{family: mf.family, size: size})
			}
		}
	}
	add(MNEMONIC_LDMAPFD, mnemonic{family: FAMILY_MAP_FD, size: SIZE_DW})

	for _, op := range slices.Sorted(maps.Keys(jmpOpName)) {
		switch {
		case op == JMP_OP_JA:
			add(op.String(), mnemonic{family: FAMILY_JUMP_ALWAYS, jmpOp: op})
		case op == JMP_OP_CALL:
			add(op.String(), mnemonic{family: FAMILY_CALL, jmpOp: op})
		case op == JMP_OP_EXIT:
			add(op.String(), mnemonic{family: FAMILY_EXIT, jmpOp: op})
		default:
			add(op.String(), mnemonic{family: FAMILY_JUMP_COMPARE, jmpOp: op})
		}
	}

	return table
}
