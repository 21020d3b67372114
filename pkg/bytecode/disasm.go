package bytecode

import (
	"fmt"
	"strings"
)

// walkDepthLimit bounds recursion when decoding untrusted buffers.
const walkDepthLimit = 1 << 16

// decodedOp is one opcode located by a structural walk of an encoded buffer.
type decodedOp struct {
	Offset int
	Op     Opcode
	Depth  int    // Sub-expression nesting, 0 at top level
	Lead   uint64 // Leading operand, if the opcode has one
	Trail  uint64 // Trailing operand, if the opcode has one
	End    int    // Offset just past the opcode's last byte
}

// decodeOps walks code the way the VM consumes it, without executing jumps.
// It returns the opcodes in prefix order and the offset where decoding
// stopped. err is non-nil when the buffer is malformed at that offset.
func decodeOps(code []byte) (ops []decodedOp, stop int, err error) {
	pos := 0
	for pos < len(code) {
		var next int
		ops, next, err = decodeOp(code, pos, 0, ops)
		if err != nil {
			return ops, pos, err
		}
		pos = next
	}
	return ops, pos, nil
}

func decodeOp(code []byte, pos, depth int, ops []decodedOp) ([]decodedOp, int, error) {
	if depth >= walkDepthLimit {
		return ops, pos, newError(KindDepthExceeded, pos, "nesting deeper than %d", walkDepthLimit)
	}
	if pos >= len(code) {
		return ops, pos, newError(KindUnexpectedEnd, pos, "expected opcode")
	}
	op := Opcode(code[pos])
	if !op.Valid() {
		return ops, pos, newError(KindInvalidOpcode, pos, "byte 0x%02X", code[pos])
	}

	info := GetOpcodeInfo(op)
	self := len(ops)
	ops = append(ops, decodedOp{Offset: pos, Op: op, Depth: depth})
	pos++

	if info.Operands > 0 {
		v, err := DecodeOperand(code[pos:], info.Operands)
		if err != nil {
			return ops, pos, newError(KindUnexpectedEnd, pos, "%s operand", op)
		}
		ops[self].Lead = v
		pos += info.Operands
	}

	for i := 0; i < info.SubExprs; i++ {
		var err error
		ops, pos, err = decodeOp(code, pos, depth+1, ops)
		if err != nil {
			return ops, pos, err
		}
	}

	if info.TrailingLen > 0 {
		v, err := DecodeOperand(code[pos:], info.TrailingLen)
		if err != nil {
			return ops, pos, newError(KindUnexpectedEnd, pos, "%s trailing operand", op)
		}
		ops[self].Trail = v
		pos += info.TrailingLen
	}

	ops[self].End = pos
	return ops, pos, nil
}

// Disassemble returns a human-readable listing of the chunk's encoding.
func (c *Chunk) Disassemble() string {
	return DisassembleCode(c.Encode(), c.Constants)
}

// DisassembleCode returns a human-readable listing of an encoded buffer.
// Sub-expressions are indented under the opcode that consumes them.
func DisassembleCode(code []byte, constants []Value) string {
	var sb strings.Builder

	if len(constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, truncate(v.GoString(), 40)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("; Code: %d bytes\n", len(code)))
	ops, stop, err := decodeOps(code)
	for _, d := range ops {
		sb.WriteString(fmt.Sprintf("%04X  %s%s\n", d.Offset, strings.Repeat("  ", d.Depth), describeOp(d, constants)))
	}

	if err != nil {
		sb.WriteString(fmt.Sprintf("; %v\n", err))
		for i := stop; i < len(code); i++ {
			sb.WriteString(fmt.Sprintf("%04X  .byte 0x%02X\n", i, code[i]))
		}
	}

	return sb.String()
}

func describeOp(d decodedOp, constants []Value) string {
	name := d.Op.String()

	switch d.Op {
	case OpConstant, OpLongConstant:
		return fmt.Sprintf("%s %d ; %s", name, d.Lead, constantNote(constants, d.Lead))

	case OpVar, OpAssign, OpGet:
		if note := nameNote(constants, d.Lead); note != "" {
			return fmt.Sprintf("%s %d ; %s", name, d.Lead, note)
		}
		return fmt.Sprintf("%s %d", name, d.Lead)

	case OpPop:
		return fmt.Sprintf("%s %d", name, d.Lead)
	}

	if d.Op.IsJump() {
		target := d.End + int(d.Trail)
		if d.Op.IsBackwardJump() {
			target = d.End - int(d.Trail)
		}
		return fmt.Sprintf("%s %d -> %04X", name, d.Trail, target)
	}

	return name
}

func constantNote(constants []Value, idx uint64) string {
	if idx >= uint64(len(constants)) {
		return "<out of range>"
	}
	return truncate(constants[idx].GoString(), 20)
}

func nameNote(constants []Value, idx uint64) string {
	if idx >= uint64(len(constants)) || constants[idx].Kind != KindText {
		return ""
	}
	return constants[idx].Str
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
