// Package ebpf implements an assembler and disassembler for eBPF
// instruction streams.
//
// Each instruction occupies one 8-byte slot: an opcode byte, a byte
// holding the dst and src register nibbles, a little-endian signed
// 16-bit offset and a little-endian signed 32-bit immediate. LDDW and
// LDMAPFD occupy two slots.
//
// The assembly text is one statement per line or per ';'. Registers
// are r0 through r10, literals are decimal or '0x' hexadecimal, and
// memory references are written [r1], [r1+8] or [r1-8]. Jump targets
// are statement indexes, or relative offsets when written with an
// explicit sign. The disassembler renders text the assembler accepts.
package ebpf
