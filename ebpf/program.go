package ebpf

import (
	"errors"
	"iter"
)

// Statement is one parsed source statement.
type Statement struct {
	LineNo      int    // Source line of the statement.
	Column      int    // Source column of the mnemonic.
	Pc          int    // Statement index, the base of jump targets.
	Text        string // Source text, whitespace normalized.
	Instruction Instruction
}

// Program is a sequence of parsed statements, in source order.
type Program struct {
	Statements []Statement
}

// Debug locates the statement that encodes a slot.
type Debug struct {
	*Statement
	Index int // Slot within the statement's encoding.
}

// Instructions returns the instructions of the program.
func (prog *Program) Instructions() (insts []Instruction) {
	insts = make([]Instruction, 0, len(prog.Statements))
	for _, stmt := range prog.Statements {
		insts = append(insts, stmt.Instruction)
	}
	return
}

// Debug returns the statement encoding the slot, or a Debug
// with a nil Statement if slot is past the end of the program.
func (prog *Program) Debug(slot int) (dbg Debug) {
	base := 0
	for n, stmt := range prog.Statements {
		slots := stmt.Instruction.Slots()
		if slot >= base && slot < base+slots {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     slot - base,
			}
			break
		}
		base += slots
	}

	return
}

// Binary encodes the program. Encoding failures are located at the
// source line of the failing statement.
func (prog *Program) Binary() (data []byte, err error) {
	data, err = Encode(prog.Instructions())
	if err != nil {
		var eerr *ErrEncode
		if errors.As(err, &eerr) && eerr.Index < len(prog.Statements) {
			stmt := &prog.Statements[eerr.Index]
			err = &ErrSyntax{
				LineNo:    stmt.LineNo,
				Column:    stmt.Column,
				Statement: stmt.Text,
				Err:       eerr.Err,
			}
		}
		return nil, err
	}

	return
}

// Words iterates over the encoded slots of the program, stopping at
// the first statement that cannot be encoded.
func (prog *Program) Words() iter.Seq2[int, Word] {
	return func(yield func(slot int, word Word) bool) {
		slot := 0
		for _, stmt := range prog.Statements {
			words, err := EncodeWords(stmt.Instruction)
			if err != nil {
				return
			}
			for _, word := range words {
				if !yield(slot, word) {
					return
				}
				slot++
			}
		}
	}
}
