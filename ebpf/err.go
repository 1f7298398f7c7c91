package ebpf

import (
	"errors"

	"github.com/ezrec/bpfasm/translate"
)

var f = translate.From

var (
	// Assembler errors
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrOperandCount       = errors.New(f("wrong number of operands"))
	ErrOperandShape       = errors.New(f("operand shape mismatch"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrOffsetMissingSign  = errors.New(f("offset needs an explicit sign"))
	ErrHelperAnnotation   = errors.New(f("helper annotation not allowed here"))
	ErrHelperTable        = errors.New(f("no helper table for symbolic call"))

	// Encoder errors
	ErrRegisterRange  = errors.New(f("register out of range"))
	ErrOffsetRange    = errors.New(f("offset out of range"))
	ErrImmediateRange = errors.New(f("immediate out of range"))
	ErrWidthInvalid   = errors.New(f("endian width invalid"))
	ErrSizeInvalid    = errors.New(f("memory size invalid"))
	ErrOpInvalid      = errors.New(f("operation invalid for instruction"))
	ErrOperandMissing = errors.New(f("operand missing"))

	// Decoder errors
	ErrStreamLength = errors.New(f("stream length is not a multiple of 8"))
)

// ErrSyntax locates an assembly error in the source text.
type ErrSyntax struct {
	LineNo    int
	Column    int
	Statement string
	Err       error
}

func (err *ErrSyntax) Error() string {
	if len(err.Statement) == 0 {
		return f("line %d:%d %v", err.LineNo, err.Column, err.Err)
	}
	return f("line %d:%d '%v' %v", err.LineNo, err.Column, err.Statement, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrGrammar is a token level parse failure.
type ErrGrammar string

func (err ErrGrammar) Error() string {
	return f("syntax: %v", string(err))
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrMnemonic string

func (err ErrMnemonic) Error() string {
	return f("'%v' is not an instruction", string(err))
}

func (err ErrMnemonic) Unwrap() error {
	return ErrInstructionInvalid
}

type ErrHelperName string

func (err ErrHelperName) Error() string {
	return f("helper '%v' unknown", string(err))
}

type ErrEndianStyle string

func (err ErrEndianStyle) Error() string {
	return f("endian style '%v' unknown", string(err))
}

// ErrEncode is an instruction that violates a field range.
type ErrEncode struct {
	Index int
	Err   error
}

func (err *ErrEncode) Error() string {
	return f("instruction %d: %v", err.Index, err.Err)
}

func (err *ErrEncode) Unwrap() error {
	return err.Err
}

// ErrHelper is a call to a helper id missing from a strict helper table.
type ErrHelper struct {
	Pc     int
	Helper Immediate
}

func (err *ErrHelper) Error() string {
	return f("pc %d: helper %d not in table", err.Pc, int64(err.Helper))
}
