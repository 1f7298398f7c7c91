package ebpf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// slot returns the binary encoding of one word.
func slot(opcode, regs uint8, offset int16, imm int32) []byte {
	data, _ := Word{Opcode: opcode, Regs: regs, Offset: offset, Imm: imm}.AppendBinary(nil)
	return data
}

func TestWord(t *testing.T) {
	assert := assert.New(t)

	word := MakeWord(0x7b, 10, 2, -8, -1)
	data, err := word.AppendBinary(nil)
	assert.NoError(err)
	assert.Equal([]byte{0x7b, 0x2a, 0xf8, 0xff, 0xff, 0xff, 0xff, 0xff}, data)
	assert.Equal(word, ReadWord(data))
	assert.Equal(uint64(0xfffffffffff82a7b), word.Uint64())

	assert.Equal(CLASS_STX, word.Class())
	assert.Equal(SIZE_DW, word.Size())
	assert.Equal(MODE_MEM, word.Mode())
	assert.Equal(Register(10), word.Dst())
	assert.Equal(Register(2), word.Src())
	assert.True(word.Source())
	assert.Equal("7b 2a fff8 ffffffff", word.String())

	word = MakeWord(0xbc, 1, 2, 0, 0)
	assert.Equal(ALU_OP_MOV, word.AluOp())
	assert.Equal(uint8(0x21), word.Regs)

	// Register nibbles are truncated, not carried.
	word = MakeWord(0x95, 0x1f, 0x1f, 0, 0)
	assert.Equal(uint8(0xff), word.Regs)
}

func FuzzWord(f *testing.F) {
	f.Add([]byte{0x04, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00})
	f.Add([]byte{0x18, 0x21, 0xff, 0x7f, 0x00, 0x00, 0x00, 0x80})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) < WORD_SIZE {
			t.Skip()
		}

		word := ReadWord(data)
		out, err := word.AppendBinary(nil)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != string(data[:WORD_SIZE]) {
			t.Fatalf("%x != %x", out, data[:WORD_SIZE])
		}
		if MakeWord(word.Opcode, word.Dst(), word.Src(), word.Offset, word.Imm) != word {
			t.Fatalf("%v does not repack", word)
		}
	})
}
