package bytecode

import "strings"

var symbolOpcodes = func() map[rune]Opcode {
	m := make(map[rune]Opcode, OpcodeCount())
	for _, op := range AllOpcodes() {
		m[GetOpcodeInfo(op).Symbol] = op
	}
	return m
}()

// Symbol returns the printable symbol for an opcode, or the rune whose
// code point is the opcode byte if the opcode is undefined.
func (op Opcode) Symbol() rune {
	if op.Valid() {
		return opcodeInfoTable[op].Symbol
	}
	return rune(op)
}

// EncodeSymbols renders an encoded buffer as text. Opcode bytes become
// their symbols and every other byte becomes the rune with that code
// point. Opcodes are located structurally, so an operand byte that
// happens to equal an opcode value still renders as a raw rune. Bytes past
// a malformed point render raw.
func EncodeSymbols(code []byte) string {
	isOp := make([]bool, len(code))
	ops, _, _ := decodeOps(code)
	for _, d := range ops {
		isOp[d.Offset] = true
	}

	var sb strings.Builder
	sb.Grow(len(code) * 2)
	for i, b := range code {
		if isOp[i] {
			sb.WriteRune(Opcode(b).Symbol())
		} else {
			sb.WriteRune(rune(b))
		}
	}
	return sb.String()
}

// EncodeInstructionSymbols renders an instruction sequence as text without
// encoding it first. Each operand becomes the single rune with its value as
// code point, so operands of 255 or more do not round-trip through
// DecodeSymbols.
func EncodeInstructionSymbols(ins []Instruction) string {
	var sb strings.Builder
	for _, i := range ins {
		if i.IsOperand() {
			sb.WriteRune(rune(i.Value))
		} else {
			sb.WriteRune(i.Op.Symbol())
		}
	}
	return sb.String()
}

// DecodeSymbols reverses EncodeSymbols. Symbols map back to opcode bytes;
// any other rune is truncated to its low byte.
func DecodeSymbols(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if op, ok := symbolOpcodes[r]; ok {
			out = append(out, byte(op))
			continue
		}
		out = append(out, byte(r))
	}
	return out
}
