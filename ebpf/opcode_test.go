package ebpf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcodeTablesInjective(t *testing.T) {
	assert := assert.New(t)

	alu := map[string]AluOp{}
	for op, name := range aluOpName {
		_, dup := alu[name]
		assert.False(dup, name)
		alu[name] = op
	}

	jmp := map[string]JmpOp{}
	for op, name := range jmpOpName {
		_, dup := jmp[name]
		assert.False(dup, name)
		jmp[name] = op
	}

	// Every rendered mnemonic parses back to the fields it was rendered from.
	for name, m := range mnemonicMap {
		switch m.family {
		case FAMILY_UNARY_ALU, FAMILY_BINARY_ALU:
			assert.Equal(name, aluMnemonic(m.aluOp, m.is64))
		case FAMILY_JUMP_COMPARE, FAMILY_JUMP_ALWAYS, FAMILY_CALL, FAMILY_EXIT:
			assert.Equal(name, m.jmpOp.String())
		}
	}
}

func TestMnemonicMap(t *testing.T) {
	assert := assert.New(t)

	// 26 ALU, 15 endian, 22 memory, 14 jump.
	assert.Equal(77, len(mnemonicMap))

	table := map[string]mnemonic{
		"ADD":      {family: FAMILY_BINARY_ALU, aluOp: ALU_OP_ADD},
		"ARSH64":   {family: FAMILY_BINARY_ALU, aluOp: ALU_OP_ARSH, is64: true},
		"NEG64":    {family: FAMILY_UNARY_ALU, aluOp: ALU_OP_NEG, is64: true},
		"END16":    {family: FAMILY_ENDIAN, aluOp: ALU_OP_END, width: 16},
		"END64_32": {family: FAMILY_ENDIAN, aluOp: ALU_OP_END, width: 32, is64: true},
		"LE64":     {family: FAMILY_ENDIAN, aluOp: ALU_OP_END, width: 64},
		"BE16":     {family: FAMILY_ENDIAN, aluOp: ALU_OP_END, width: 16, bigEndian: true},
		"BSWAP32":  {family: FAMILY_ENDIAN, aluOp: ALU_OP_END, width: 32, is64: true},
		"LDXDW":    {family: FAMILY_LOAD, size: SIZE_DW},
		"STB":      {family: FAMILY_STORE_IMM, size: SIZE_B},
		"STXH":     {family: FAMILY_STORE_REG, size: SIZE_H},
		"XADDW":    {family: FAMILY_ATOMIC_ADD, size: SIZE_W},
		"LDABSB":   {family: FAMILY_PACKET_ABS, size: SIZE_B},
		"LDINDW":   {family: FAMILY_PACKET_IND, size: SIZE_W},
		"LDDW":     {family: FAMILY_WIDE_LOAD, size: SIZE_DW},
		"LDMAPFD":  {family: FAMILY_MAP_FD, size: SIZE_DW},
		"JA":       {family: FAMILY_JUMP_ALWAYS, jmpOp: JMP_OP_JA},
		"JSLE":     {family: FAMILY_JUMP_COMPARE, jmpOp: JMP_OP_JSLE},
		"CALL":     {family: FAMILY_CALL, jmpOp: JMP_OP_CALL},
		"EXIT":     {family: FAMILY_EXIT, jmpOp: JMP_OP_EXIT},
	}

	for name, expected := range table {
		m, ok := mnemonicMap[name]
		assert.True(ok, name)
		assert.Equal(expected, m, name)
	}

	for _, name := range []string{"NEG_", "END8", "XADDH", "LDABSDW", "LDXQ", "JMP32", "BE64_16"} {
		_, ok := mnemonicMap[name]
		assert.False(ok, name)
	}
}

func TestOpcodes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint8(0x04), MakeAluOpcode(CLASS_ALU, ALU_OP_ADD, false))
	assert.Equal(uint8(0xbc), MakeAluOpcode(CLASS_ALU, ALU_OP_MOV, true))
	assert.Equal(uint8(0x87), MakeAluOpcode(CLASS_ALU64, ALU_OP_NEG, false))
	assert.Equal(uint8(0x1d), MakeJmpOpcode(JMP_OP_JEQ, true))
	assert.Equal(uint8(0x61), MakeMemOpcode(CLASS_LDX, SIZE_W, MODE_MEM))
	assert.Equal(uint8(0x7b), MakeMemOpcode(CLASS_STX, SIZE_DW, MODE_MEM))
	assert.Equal(uint8(0xc3), MakeMemOpcode(CLASS_STX, SIZE_W, MODE_XADD))
	assert.Equal(uint8(0x48), MakeMemOpcode(CLASS_LD, SIZE_H, MODE_IND))

	assert.Equal(uint8(0x18), OP_LDDW)
	assert.Equal(uint8(0x05), OP_JA)
	assert.Equal(uint8(0x85), OP_CALL)
	assert.Equal(uint8(0x95), OP_EXIT)
}

func TestOpcodeStrings(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ALU64", CLASS_ALU64.String())
	assert.Equal("Class(9)", Class(9).String())
	assert.Equal("MOV", ALU_OP_MOV.String())
	assert.Equal("AluOp(14)", AluOp(14).String())
	assert.Equal("JSET", JMP_OP_JSET.String())
	assert.Equal("JmpOp(15)", JmpOp(15).String())
	assert.Equal("DW", SIZE_DW.String())
	assert.Equal(8, SIZE_DW.Bytes())
	assert.Equal(0, Size(4).Bytes())
	assert.Equal("Size(4)", Size(4).String())

	assert.True(ALU_OP_XOR.Binary())
	assert.False(ALU_OP_NEG.Binary())
	assert.False(ALU_OP_END.Binary())
	assert.False(AluOp(0xe).Binary())

	assert.True(JMP_OP_JLT.Compare())
	assert.False(JMP_OP_CALL.Compare())
	assert.False(JmpOp(0xe).Compare())
}

func TestEndianStyle(t *testing.T) {
	assert := assert.New(t)

	for _, style := range []EndianStyle{ENDIAN_SUFFIX, ENDIAN_BE_LE} {
		parsed, err := ParseEndianStyle(style.String())
		assert.NoError(err)
		assert.Equal(style, parsed)
	}

	_, err := ParseEndianStyle("pdp")
	assert.ErrorIs(err, ErrEndianStyle("pdp"))

	assert.Equal("END32", endianMnemonic(ENDIAN_SUFFIX, 32, false, true))
	assert.Equal("END64_64", endianMnemonic(ENDIAN_SUFFIX, 64, true, false))
	assert.Equal("BE16", endianMnemonic(ENDIAN_BE_LE, 16, false, true))
	assert.Equal("LE32", endianMnemonic(ENDIAN_BE_LE, 32, false, false))
	assert.Equal("BSWAP64", endianMnemonic(ENDIAN_BE_LE, 64, true, true))
}
