package ebpf

import (
	"fmt"
	"strconv"
)

// Register is a register number. r0-r10 are valid, r10 being the
// read-only frame pointer; the encoding has room for r0-r15.
type Register uint8

const (
	REG_R0 = Register(0)  // Return value.
	REG_R1 = Register(1)  // First argument.
	REG_FP = Register(10) // Frame pointer.

	REG_MAX = Register(15) // Largest encodable register.
)

func (reg Register) String() string {
	return "r" + strconv.Itoa(int(reg))
}

// Valid returns true for the eleven architectural registers.
func (reg Register) Valid() bool {
	return reg <= REG_FP
}

// Immediate is a signed immediate value. Instructions with a 32-bit
// immediate field accept -2^31 through 2^32-1, wrapping into the field.
type Immediate int64

func (imm Immediate) String() string {
	return strconv.FormatInt(int64(imm), 10)
}

// Operand is the right hand side of an ALU or compare instruction,
// either a Register or an Immediate.
type Operand interface {
	fmt.Stringer
	isOperand()
}

func (Register) isOperand()  {}
func (Immediate) isOperand() {}

// MemRef is a base register plus signed byte offset.
type MemRef struct {
	Base   Register
	Offset int32
}

func (mem MemRef) String() string {
	if mem.Offset == 0 {
		return "[" + mem.Base.String() + "]"
	}
	return fmt.Sprintf("[%v%+d]", mem.Base, mem.Offset)
}

// Instruction is one parsed or decoded instruction. The set of
// implementations is closed.
type Instruction interface {
	// Slots returns the number of 8-byte slots of the encoding.
	Slots() int
	isInstruction()
}

// UnaryAlu is NEG and NEG64.
type UnaryAlu struct {
	Op   AluOp
	Is64 bool
	Dst  Register
}

// BinaryAlu is a two operand ALU operation.
type BinaryAlu struct {
	Op   AluOp
	Is64 bool
	Dst  Register
	Src  Operand
}

// Endian converts the low Width bits of Dst. Is64 and BigEndian carry
// the class and source bits of the encoding.
type Endian struct {
	Width     int
	Is64      bool
	BigEndian bool
	Dst       Register
}

// MemLoad is LDX: Dst = *(Size *)(Src.Base + Src.Offset).
type MemLoad struct {
	Size Size
	Dst  Register
	Src  MemRef
}

// MemStoreImm is ST: *(Size *)(Dst.Base + Dst.Offset) = Value.
type MemStoreImm struct {
	Size  Size
	Dst   MemRef
	Value Immediate
}

// MemStoreReg is STX: *(Size *)(Dst.Base + Dst.Offset) = Src.
type MemStoreReg struct {
	Size Size
	Dst  MemRef
	Src  Register
}

// AtomicAdd is XADD: *(Size *)(Dst.Base + Dst.Offset) += Src.
type AtomicAdd struct {
	Size Size
	Dst  MemRef
	Src  Register
}

// PacketLoad is the legacy LDABS and LDIND packet access.
type PacketLoad struct {
	Size     Size
	Indirect bool
	Src      Register // LDIND only.
	Imm      Immediate
}

// WideLoad loads a 64-bit immediate, occupying two slots.
type WideLoad struct {
	Dst   Register
	Value int64
}

// LoadMapFd loads a map descriptor, occupying two slots. The loader
// replaces Fd with the map address.
type LoadMapFd struct {
	Dst Register
	Fd  Immediate
}

// JumpCompare jumps by Offset slots if Dst compares true against Rhs.
type JumpCompare struct {
	Op     JmpOp
	Dst    Register
	Rhs    Operand
	Offset int32
}

// JumpAlways jumps by Offset slots.
type JumpAlways struct {
	Offset int32
}

// Call invokes the external helper function Helper.
type Call struct {
	Helper Immediate
}

// Exit returns r0 to the caller.
type Exit struct{}

// Unknown is a slot the decoder could not recognize. It encodes back
// to the same slot.
type Unknown struct {
	Word Word
}

func (UnaryAlu) Slots() int    { return 1 }
func (BinaryAlu) Slots() int   { return 1 }
func (Endian) Slots() int      { return 1 }
func (MemLoad) Slots() int     { return 1 }
func (MemStoreImm) Slots() int { return 1 }
func (MemStoreReg) Slots() int { return 1 }
func (AtomicAdd) Slots() int   { return 1 }
func (PacketLoad) Slots() int  { return 1 }
func (WideLoad) Slots() int    { return 2 }
func (LoadMapFd) Slots() int   { return 2 }
func (JumpCompare) Slots() int { return 1 }
func (JumpAlways) Slots() int  { return 1 }
func (Call) Slots() int        { return 1 }
func (Exit) Slots() int        { return 1 }
func (Unknown) Slots() int     { return 1 }

func (UnaryAlu) isInstruction()    {}
func (BinaryAlu) isInstruction()   {}
func (Endian) isInstruction()      {}
func (MemLoad) isInstruction()     {}
func (MemStoreImm) isInstruction() {}
func (MemStoreReg) isInstruction() {}
func (AtomicAdd) isInstruction()   {}
func (PacketLoad) isInstruction()  {}
func (WideLoad) isInstruction()    {}
func (LoadMapFd) isInstruction()   {}
func (JumpCompare) isInstruction() {}
func (JumpAlways) isInstruction()  {}
func (Call) isInstruction()        {}
func (Exit) isInstruction()        {}
func (Unknown) isInstruction()     {}

// SlotCount returns the number of slots the instructions encode to.
func SlotCount(insts []Instruction) (count int) {
	for _, inst := range insts {
		if inst != nil {
			count += inst.Slots()
		}
	}
	return
}
