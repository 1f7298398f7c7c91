package io

import (
	"github.com/ezrec/bpfasm/translate"
)

var f = translate.From

// ErrFormat is an unknown tape format name.
type ErrFormat string

func (err ErrFormat) Error() string {
	return f("tape format '%v' unknown", string(err))
}

// ErrHex is malformed hexadecimal input.
type ErrHex struct {
	LineNo int
	Err    error
}

func (err *ErrHex) Error() string {
	return f("line %d: %v", err.LineNo, err.Err)
}

func (err *ErrHex) Unwrap() error {
	return err.Err
}
