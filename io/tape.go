package io

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Format is the representation of an instruction stream on a tape.
type Format int

const (
	FORMAT_RAW = Format(0) // Raw little-endian bytes.
	FORMAT_HEX = Format(1) // Hexadecimal text, one slot per line.
)

var formatName = map[Format]string{
	FORMAT_RAW: "raw",
	FORMAT_HEX: "hex",
}

func (format Format) String() string {
	name, ok := formatName[format]
	if !ok {
		return fmt.Sprintf("Format(%d)", int(format))
	}
	return name
}

// ParseFormat returns the format with the given name.
func ParseFormat(name string) (format Format, err error) {
	for format, format_name := range formatName {
		if format_name == name {
			return format, nil
		}
	}
	err = ErrFormat(name)
	return
}

// SLOT_SIZE is the number of bytes per line of hexadecimal text.
const SLOT_SIZE = 8

// Tape reads and writes instruction streams in a Format.
type Tape struct {
	Input  io.Reader
	Output io.Writer
	Format Format
}

// Load reads the entire input.
// Hexadecimal input ignores whitespace and '#' comments.
func (tc *Tape) Load() (data []byte, err error) {
	switch tc.Format {
	case FORMAT_RAW:
		return io.ReadAll(tc.Input)
	case FORMAT_HEX:
		scanner := bufio.NewScanner(tc.Input)
		for lineno := 1; scanner.Scan(); lineno++ {
			text, _, _ := strings.Cut(scanner.Text(), "#")
			for _, word := range strings.Fields(text) {
				var decoded []byte
				decoded, err = hex.DecodeString(word)
				if err != nil {
					err = &ErrHex{LineNo: lineno, Err: err}
					return
				}
				data = append(data, decoded...)
			}
		}
		err = scanner.Err()
	default:
		err = ErrFormat(tc.Format.String())
	}

	return
}

// Slots iterates over the data in SLOT_SIZE chunks. The final chunk
// may be short.
func Slots(data []byte) iter.Seq2[int, []byte] {
	return func(yield func(offset int, slot []byte) bool) {
		for offset := 0; offset < len(data); offset += SLOT_SIZE {
			if !yield(offset, data[offset:min(offset+SLOT_SIZE, len(data))]) {
				return
			}
		}
	}
}

// Store writes the data to the output.
func (tc *Tape) Store(data []byte) (err error) {
	switch tc.Format {
	case FORMAT_RAW:
		_, err = tc.Output.Write(data)
	case FORMAT_HEX:
		var buff bytes.Buffer
		for _, slot := range Slots(data) {
			buff.WriteString(hex.EncodeToString(slot))
			buff.WriteByte('\n')
		}
		_, err = tc.Output.Write(buff.Bytes())
	default:
		err = ErrFormat(tc.Format.String())
	}

	return
}

// StoreLines writes text lines to the output.
func (tc *Tape) StoreLines(lines []string) (err error) {
	writer := bufio.NewWriter(tc.Output)
	for _, line := range lines {
		_, err = fmt.Fprintln(writer, line)
		if err != nil {
			return
		}
	}

	return writer.Flush()
}
