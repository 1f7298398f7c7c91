package ebpf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/bpfasm/helper"
)

func TestAssemblerEmpty(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	for _, text := range []string{"", "\n\n", " ; ;\n;", "\t\r\n"} {
		prog, err := asm.ParseString(text)
		assert.NoError(err, text)
		assert.Equal(0, len(prog.Statements), text)
	}
}

func TestAssemblerScenarios(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	data, err := asm.Assemble("ADD r1, 2")
	assert.NoError(err)
	assert.Equal([]byte{0x04, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}, data)

	data, err = asm.Assemble("MOV r1, r2")
	assert.NoError(err)
	assert.Equal(slot(0xbc, 0x21, 0, 0), data)

	data, err = asm.Assemble("EXIT")
	assert.NoError(err)
	assert.Equal([]byte{0x95, 0, 0, 0, 0, 0, 0, 0}, data)
}

func TestAssemblerStatements(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	text := strings.Join([]string{
		"ADD r1, 2; MOV r1, r2",
		"",
		"   exit ;",
	}, "\n")

	prog, err := asm.Parse(strings.NewReader(text))
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
		return
	}

	expected := []Statement{
		{1, 1, 0, "ADD r1, 2", BinaryAlu{Op: ALU_OP_ADD, Dst: 1, Src: Immediate(2)}},
		{1, 12, 1, "MOV r1, r2", BinaryAlu{Op: ALU_OP_MOV, Dst: 1, Src: Register(2)}},
		{3, 4, 2, "exit", Exit{}},
	}
	assert.Equal(expected, prog.Statements)
}

func TestAssemblerTolerance(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	table := map[string]string{
		"ADD r1, 2":                   "  add   R1 ,2  ",
		"MOV r1, 16":                  "MOV r1, 0x10",
		"MOV r1, -16":                 "mov r1, -0X10",
		"MOV r1, 10":                  "MOV r1, 010",
		"MOV r1, 2":                   "MOV r1, +2",
		"LDXW r1, [r2+1]":             "ldxw r1,[ r2 + 0x1 ]",
		"STW [r1], 1":                 "STW [r1+0], 1",
		"JEQ r1, 33, +3":              "JEQ r1,\n33,\n4",
		"ADD r1, 2; EXIT":             "ADD r1, 2\nEXIT",
		"LDDW r1, 0xffffffffffffffff": "LDDW r1, -1",
		"MOV r1, 0xffffffff":          "MOV r1, -1",
	}

	for canonical, variant := range table {
		expected, err := asm.Assemble(canonical)
		assert.NoError(err, canonical)
		data, err := asm.Assemble(variant)
		assert.NoError(err, variant)
		assert.Equal(expected, data, variant)
	}
}

func TestAssemblerInstructions(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	table := []struct {
		text     string
		expected Instruction
	}{
		{"NEG64 r3", UnaryAlu{Op: ALU_OP_NEG, Is64: true, Dst: 3}},
		{"ARSH64 r1, r15", BinaryAlu{Op: ALU_OP_ARSH, Is64: true, Dst: 1, Src: Register(15)}},
		{"END64_32 r1", Endian{Width: 32, Is64: true, Dst: 1}},
		{"LE16 r1", Endian{Width: 16, Dst: 1}},
		{"BE64 r1", Endian{Width: 64, BigEndian: true, Dst: 1}},
		{"BSWAP16 r1", Endian{Width: 16, Is64: true, Dst: 1}},
		{"LDXDW r0, [r10-8]", MemLoad{Size: SIZE_DW, Dst: 0, Src: MemRef{Base: 10, Offset: -8}}},
		{"STB [r10-1], 255", MemStoreImm{Size: SIZE_B, Dst: MemRef{Base: 10, Offset: -1}, Value: 255}},
		{"STXH [r1+2], r3", MemStoreReg{Size: SIZE_H, Dst: MemRef{Base: 1, Offset: 2}, Src: 3}},
		{"XADDDW [r1], r2", AtomicAdd{Size: SIZE_DW, Dst: MemRef{Base: 1}, Src: 2}},
		{"LDABSB 23", PacketLoad{Size: SIZE_B, Imm: 23}},
		{"LDINDW r6, -4", PacketLoad{Size: SIZE_W, Indirect: true, Src: 6, Imm: -4}},
		{"LDDW r2, 0x8000000000000000", WideLoad{Dst: 2, Value: -1 << 63}},
		{"LDDW r2, -0x8000000000000000", WideLoad{Dst: 2, Value: -1 << 63}},
		{"LDMAPFD r1, 4", LoadMapFd{Dst: 1, Fd: 4}},
		{"JSLT r1, -1, +0", JumpCompare{Op: JMP_OP_JSLT, Dst: 1, Rhs: Immediate(-1), Offset: 0}},
		{"JSET r1, r2, 0", JumpCompare{Op: JMP_OP_JSET, Dst: 1, Rhs: Register(2), Offset: -1}},
		{"JA 2", JumpAlways{Offset: 1}},
		{"JA -32768", JumpAlways{Offset: -32768}},
		{"CALL 12", Call{Helper: 12}},
		{"CALL 1 <anything>", Call{Helper: 1}},
	}

	for _, entry := range table {
		prog, err := asm.ParseString(entry.text)
		assert.NoError(err, entry.text)
		if assert.Equal(1, len(prog.Statements), entry.text) {
			assert.Equal(entry.expected, prog.Statements[0].Instruction, entry.text)
		}
	}
}

func TestAssemblerTargets(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	text := strings.Join([]string{
		"JA 2",  // 0: offset +1
		"JA +1", // 1: offset +1
		"EXIT",
		"EXIT",
		"EXIT",
		"JA 5",         // 5: offset -1
		"JNE r1, 0, 0", // 6: offset -7
	}, "\n")

	prog, err := asm.ParseString(text)
	assert.NoError(err)

	insts := prog.Instructions()
	assert.Equal(JumpAlways{Offset: 1}, insts[0])
	assert.Equal(JumpAlways{Offset: 1}, insts[1])
	assert.Equal(JumpAlways{Offset: -1}, insts[5])
	assert.Equal(JumpCompare{Op: JMP_OP_JNE, Dst: 1, Rhs: Immediate(0), Offset: -7}, insts[6])
}

func TestAssemblerHelpers(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{Helpers: helper.Linux()}

	prog, err := asm.ParseString("CALL <map_lookup_elem>\nCALL 2 <map_update_elem>\nCALL 99")
	assert.NoError(err)
	assert.Equal([]Instruction{Call{Helper: 1}, Call{Helper: 2}, Call{Helper: 99}}, prog.Instructions())

	_, err = asm.ParseString("CALL <no_such_helper>")
	assert.ErrorIs(err, ErrHelperName("no_such_helper"))

	_, err = asm.ParseString("CALL 2 <map_lookup_elem>")
	assert.ErrorIs(err, ErrHelperName("map_lookup_elem"))

	_, err = asm.ParseString("CALL 1, 2")
	assert.ErrorIs(err, ErrOperandCount)

	asm.Helpers = nil
	_, err = asm.ParseString("CALL <map_lookup_elem>")
	assert.ErrorIs(err, ErrHelperTable)

	_, err = asm.ParseString("EXIT <map_lookup_elem>")
	assert.ErrorIs(err, ErrHelperAnnotation)
}

func TestAssemblerErrors(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	table := []struct {
		text string
		err  error
	}{
		{"FOO r1", ErrInstructionInvalid},
		{"ADD r1", ErrOperandCount},
		{"EXIT r0", ErrOperandCount},
		{"JA", ErrOperandCount},
		{"ADD 1, r1", ErrOperandShape},
		{"LDXW r1, r2", ErrOperandShape},
		{"STXW [r1], 2", ErrOperandShape},
		{"JA r1", ErrOperandShape},
		{"LDDW r1, [r2]", ErrOperandShape},
		{"ADD r16, 1", ErrRegisterInvalid},
		{"ADD r1, r999", ErrRegisterInvalid},
		{"LDXW r1, [r2 1]", ErrOffsetMissingSign},
		{"JA +2147483648", ErrOffsetRange},
		{"MOV r1, 18446744073709551616", ErrParseNumber("18446744073709551616")},
		{"MOV r1, 0xzz", ErrParseNumber("0xzz")},
		{"MOV r1, 12abc", ErrParseNumber("12abc")},
		{"MOV r1, -0x", ErrParseNumber("-0x")},
		{"MOV r1, 0x8000000000000000", ErrImmediateRange},
		{"LDDW r1, -0x8000000000000001", ErrImmediateRange},
	}

	for _, entry := range table {
		_, err := asm.ParseString("EXIT\n  " + entry.text)
		assert.ErrorIs(err, entry.err, entry.text)

		var serr *ErrSyntax
		if assert.ErrorAs(err, &serr, entry.text) {
			assert.Equal(2, serr.LineNo, entry.text)
			assert.Equal(3, serr.Column, entry.text)
			assert.Equal(entry.text, serr.Statement)
		}
	}
}

func TestAssemblerGrammar(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	for _, text := range []string{
		"ADD r1, 2 3",
		"ADD r1,, 2",
		"ADD r1, $2",
		"LDXW r1, [r2+1",
		"LDXW r1, [1]",
		"12",
	} {
		_, err := asm.ParseString(text)
		var gerr ErrGrammar
		assert.ErrorAs(err, &gerr, text)

		var serr *ErrSyntax
		if assert.ErrorAs(err, &serr, text) {
			assert.Equal(1, serr.LineNo, text)
		}
	}
}

func TestAssemblerEncodeErrors(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	for _, entry := range []struct {
		text string
		err  error
	}{
		{"MOV r1, 0x100000000", ErrImmediateRange},
		{"JA +32768", ErrOffsetRange},
		{"LDXW r1, [r2-32769]", ErrOffsetRange},
		{"CALL -2147483649", ErrImmediateRange},
	} {
		_, err := asm.Assemble("EXIT\n" + entry.text)
		assert.ErrorIs(err, entry.err, entry.text)

		var serr *ErrSyntax
		if assert.ErrorAs(err, &serr, entry.text) {
			assert.Equal(2, serr.LineNo, entry.text)
			assert.Equal(entry.text, serr.Statement)
		}
	}
}

func TestAssemblerVerbose(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{Verbose: true}

	data, err := asm.Assemble("LDDW r1, 1\nEXIT")
	assert.NoError(err)
	assert.True(bytes.HasSuffix(data, slot(0x95, 0, 0, 0)))
	assert.Equal(24, len(data))
}
