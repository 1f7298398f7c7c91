// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ebpf

import (
	"errors"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ezrec/bpfasm/helper"
)

// Assembly source grammar.

type asmSource struct {
	Statements []*asmStatement `";"* ( @@ ";"* )*`
}

type asmStatement struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Mnemonic string        `@Ident`
	Operands []*asmOperand `( @@ ( "," @@ )* )?`
	Helper   *string       `( "<" @Ident ">" )?`
}

type asmOperand struct {
	Register *string     `  @Register`
	Memory   *asmMemory  `| "[" @@ "]"`
	Literal  *asmLiteral `| @@`
}

type asmMemory struct {
	Base   string      `@Register`
	Offset *asmLiteral `@@?`
}

type asmLiteral struct {
	Sign  string `@("+" | "-")?`
	Value string `@Number`
}

var asmLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Register", Pattern: `[rR][0-9]+\b`},
	{Name: "Number", Pattern: `[0-9][0-9a-zA-Z_]*`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[-+,;\[\]<>]`},
})

var asmParser = participle.MustBuild[asmSource](
	participle.Lexer(asmLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Assembler converts assembly text into instructions.
type Assembler struct {
	Verbose bool          // If set, verbosely logs the assembler actions.
	Helpers *helper.Table // Resolves 'CALL <name>', may be nil.
}

// Parse reads and parses an assembly program.
func (asm *Assembler) Parse(r io.Reader) (prog *Program, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return
	}

	return asm.ParseString(string(data))
}

// ParseString parses an assembly program.
func (asm *Assembler) ParseString(text string) (prog *Program, err error) {
	source, err := asmParser.ParseString("", text)
	if err != nil {
		err = grammarError(err)
		return
	}

	prog = &Program{}
	for index, stmt := range source.Statements {
		line := stmt.text(text)
		var inst Instruction
		inst, err = asm.statement(index, stmt)
		if err != nil {
			return nil, &ErrSyntax{
				LineNo:    stmt.Pos.Line,
				Column:    stmt.Pos.Column,
				Statement: line,
				Err:       err,
			}
		}
		if asm.Verbose {
			log.Printf("%v: %v\n", stmt.Pos.Line, line)
		}
		prog.Statements = append(prog.Statements, Statement{
			LineNo:      stmt.Pos.Line,
			Column:      stmt.Pos.Column,
			Pc:          index,
			Text:        line,
			Instruction: inst,
		})
	}

	return
}

// Assemble parses and encodes an assembly program.
func (asm *Assembler) Assemble(text string) (data []byte, err error) {
	prog, err := asm.ParseString(text)
	if err != nil {
		return
	}

	return prog.Binary()
}

// grammarError locates a token level failure.
func grammarError(err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		return &ErrSyntax{
			LineNo: pos.Line,
			Column: pos.Column,
			Err:    ErrGrammar(perr.Message()),
		}
	}
	return err
}

// text returns the source text of the statement.
func (stmt *asmStatement) text(source string) string {
	start, end := stmt.Pos.Offset, stmt.EndPos.Offset
	if start < 0 || start > len(source) {
		return ""
	}
	if end < start || end > len(source) {
		end = len(source)
	}
	text, _, _ := strings.Cut(source[start:end], ";")
	return strings.Join(strings.Fields(text), " ")
}

// statement converts one parsed statement at index into an instruction.
func (asm *Assembler) statement(index int, stmt *asmStatement) (inst Instruction, err error) {
	m, ok := mnemonicMap[strings.ToUpper(stmt.Mnemonic)]
	if !ok {
		err = ErrMnemonic(stmt.Mnemonic)
		return
	}

	if stmt.Helper != nil && m.family != FAMILY_CALL {
		err = ErrHelperAnnotation
		return
	}

	ops := stmt.Operands

	switch m.family {
	case FAMILY_UNARY_ALU:
		var dst Register
		if dst, err = expectReg(ops); err == nil {
			inst = UnaryAlu{Op: m.aluOp, Is64: m.is64, Dst: dst}
		}
	case FAMILY_ENDIAN:
		var dst Register
		if dst, err = expectReg(ops); err == nil {
			inst = Endian{Width: m.width, Is64: m.is64, BigEndian: m.bigEndian, Dst: dst}
		}
	case FAMILY_BINARY_ALU:
		alu := BinaryAlu{Op: m.aluOp, Is64: m.is64}
		if err = expect(ops, 2); err != nil {
			return
		}
		if alu.Dst, err = ops[0].reg(); err != nil {
			return
		}
		if alu.Src, err = ops[1].operand(); err != nil {
			return
		}
		inst = alu
	case FAMILY_LOAD:
		load := MemLoad{Size: m.size}
		if err = expect(ops, 2); err != nil {
			return
		}
		if load.Dst, err = ops[0].reg(); err != nil {
			return
		}
		if load.Src, err = ops[1].mem(); err != nil {
			return
		}
		inst = load
	case FAMILY_STORE_IMM:
		store := MemStoreImm{Size: m.size}
		if err = expect(ops, 2); err != nil {
			return
		}
		if store.Dst, err = ops[0].mem(); err != nil {
			return
		}
		if store.Value, err = ops[1].imm(); err != nil {
			return
		}
		inst = store
	case FAMILY_STORE_REG, FAMILY_ATOMIC_ADD:
		if err = expect(ops, 2); err != nil {
			return
		}
		var dst MemRef
		var src Register
		if dst, err = ops[0].mem(); err != nil {
			return
		}
		if src, err = ops[1].reg(); err != nil {
			return
		}
		if m.family == FAMILY_ATOMIC_ADD {
			inst = AtomicAdd{Size: m.size, Dst: dst, Src: src}
		} else {
			inst = MemStoreReg{Size: m.size, Dst: dst, Src: src}
		}
	case FAMILY_PACKET_ABS:
		if err = expect(ops, 1); err != nil {
			return
		}
		var imm Immediate
		if imm, err = ops[0].imm(); err == nil {
			inst = PacketLoad{Size: m.size, Imm: imm}
		}
	case FAMILY_PACKET_IND:
		load := PacketLoad{Size: m.size, Indirect: true}
		if err = expect(ops, 2); err != nil {
			return
		}
		if load.Src, err = ops[0].reg(); err != nil {
			return
		}
		if load.Imm, err = ops[1].imm(); err != nil {
			return
		}
		inst = load
	case FAMILY_WIDE_LOAD:
		load := WideLoad{}
		if err = expect(ops, 2); err != nil {
			return
		}
		if load.Dst, err = ops[0].reg(); err != nil {
			return
		}
		if ops[1].Literal == nil {
			err = ErrOperandShape
			return
		}
		if load.Value, err = ops[1].Literal.value(true); err != nil {
			return
		}
		inst = load
	case FAMILY_MAP_FD:
		load := LoadMapFd{}
		if err = expect(ops, 2); err != nil {
			return
		}
		if load.Dst, err = ops[0].reg(); err != nil {
			return
		}
		if load.Fd, err = ops[1].imm(); err != nil {
			return
		}
		inst = load
	case FAMILY_JUMP_COMPARE:
		jump := JumpCompare{Op: m.jmpOp}
		if err = expect(ops, 3); err != nil {
			return
		}
		if jump.Dst, err = ops[0].reg(); err != nil {
			return
		}
		if jump.Rhs, err = ops[1].operand(); err != nil {
			return
		}
		if jump.Offset, err = ops[2].target(index); err != nil {
			return
		}
		inst = jump
	case FAMILY_JUMP_ALWAYS:
		if err = expect(ops, 1); err != nil {
			return
		}
		var offset int32
		if offset, err = ops[0].target(index); err == nil {
			inst = JumpAlways{Offset: offset}
		}
	case FAMILY_CALL:
		inst, err = asm.call(ops, stmt.Helper)
	case FAMILY_EXIT:
		if err = expect(ops, 0); err == nil {
			inst = Exit{}
		}
	default:
		err = ErrInstructionInvalid
	}

	return
}

// call resolves 'CALL id', 'CALL <name>' and 'CALL id <name>'.
func (asm *Assembler) call(ops []*asmOperand, name *string) (inst Instruction, err error) {
	switch {
	case len(ops) == 0 && name != nil:
		if asm.Helpers == nil {
			err = ErrHelperTable
			return
		}
		id, ok := asm.Helpers.Lookup(*name)
		if !ok {
			err = ErrHelperName(*name)
			return
		}
		inst = Call{Helper: Immediate(id)}
	case len(ops) == 1:
		var id Immediate
		if id, err = ops[0].imm(); err != nil {
			return
		}
		if name != nil && asm.Helpers != nil {
			known, ok := asm.Helpers.Name(int64(id))
			if !ok || known != *name {
				err = ErrHelperName(*name)
				return
			}
		}
		inst = Call{Helper: id}
	default:
		err = ErrOperandCount
	}

	return
}

// expect checks the operand count.
func expect(ops []*asmOperand, count int) error {
	if len(ops) != count {
		return ErrOperandCount
	}
	return nil
}

// expectReg returns the only operand, which must be a register.
func expectReg(ops []*asmOperand) (reg Register, err error) {
	if err = expect(ops, 1); err != nil {
		return
	}
	return ops[0].reg()
}

// parseRegister converts 'rN' into a register, 0 <= N <= 15.
func parseRegister(text string) (reg Register, err error) {
	num, err := strconv.ParseUint(text[1:], 10, 8)
	if err != nil || Register(num) > REG_MAX {
		err = ErrRegisterInvalid
		return
	}
	reg = Register(num)
	return
}

func (op *asmOperand) reg() (reg Register, err error) {
	if op.Register == nil {
		err = ErrOperandShape
		return
	}
	return parseRegister(*op.Register)
}

func (op *asmOperand) imm() (imm Immediate, err error) {
	if op.Literal == nil {
		err = ErrOperandShape
		return
	}
	value, err := op.Literal.value(false)
	imm = Immediate(value)
	return
}

// operand returns a register or immediate right hand side.
func (op *asmOperand) operand() (Operand, error) {
	if op.Register != nil {
		return op.reg()
	}
	return op.imm()
}

func (op *asmOperand) mem() (mem MemRef, err error) {
	if op.Memory == nil {
		err = ErrOperandShape
		return
	}
	if mem.Base, err = parseRegister(op.Memory.Base); err != nil {
		return
	}

	lit := op.Memory.Offset
	if lit == nil {
		return
	}
	if len(lit.Sign) == 0 {
		err = ErrOffsetMissingSign
		return
	}
	value, err := lit.value(false)
	if err != nil {
		return
	}
	if value < math.MinInt32 || value > math.MaxInt32 {
		err = ErrOffsetRange
		return
	}
	mem.Offset = int32(value)

	return
}

// target converts a jump destination at statement index into an offset.
// Signed literals are offsets, unsigned literals are statement indexes.
func (op *asmOperand) target(index int) (offset int32, err error) {
	if op.Literal == nil {
		err = ErrOperandShape
		return
	}
	value, err := op.Literal.value(false)
	if err != nil {
		return
	}
	if len(op.Literal.Sign) == 0 {
		value -= int64(index) + 1
	}
	if value < math.MinInt32 || value > math.MaxInt32 {
		err = ErrOffsetRange
		return
	}
	offset = int32(value)

	return
}

// value converts the literal. A '0x' prefix selects hexadecimal,
// otherwise decimal. If wide is set, unsigned values up to 2^64-1 wrap.
func (lit *asmLiteral) value(wide bool) (value int64, err error) {
	digits, base := lit.Value, 10
	if len(digits) > 2 && (digits[1] == 'x' || digits[1] == 'X') {
		digits, base = digits[2:], 16
	}

	mag, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		err = ErrParseNumber(lit.Sign + lit.Value)
		return
	}

	switch {
	case lit.Sign == "-" && mag <= 1<<63:
		value = int64(^mag + 1)
	case lit.Sign == "-":
		err = ErrImmediateRange
	case mag <= math.MaxInt64 || wide:
		value = int64(mag)
	default:
		err = ErrImmediateRange
	}

	return
}
