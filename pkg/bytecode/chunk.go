package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Instruction is one element of a compiled instruction sequence: either an
// opcode, or a standalone operand belonging to the opcode before it.
type Instruction struct {
	Op        Opcode
	Value     uint64
	isOperand bool
}

// Op returns an opcode instruction.
func Op(op Opcode) Instruction {
	return Instruction{Op: op}
}

// Operand returns an operand instruction carrying v.
func Operand(v uint64) Instruction {
	return Instruction{Value: v, isOperand: true}
}

// IsOperand reports whether the instruction is an operand element.
func (i Instruction) IsOperand() bool {
	return i.isOperand
}

func (i Instruction) String() string {
	if i.isOperand {
		return fmt.Sprintf("Operand(%d)", i.Value)
	}
	return i.Op.String()
}

// ---------------------------------------------------------------------------
// Operand encoding
// ---------------------------------------------------------------------------

// OperandWidth returns the number of bytes the encoder writes for v.
// Thresholds are strict: 255 itself takes two bytes.
func OperandWidth(v uint64) int {
	switch {
	case v < math.MaxUint8:
		return 1
	case v < math.MaxUint16:
		return 2
	case v < math.MaxUint32:
		return 4
	default:
		return 8
	}
}

// AppendOperand appends v as an unsigned little-endian integer of
// OperandWidth(v) bytes.
func AppendOperand(buf []byte, v uint64) []byte {
	switch OperandWidth(v) {
	case 1:
		return append(buf, byte(v))
	case 2:
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case 4:
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

// EncodeOperand returns the encoded bytes of a single operand.
func EncodeOperand(v uint64) []byte {
	return AppendOperand(make([]byte, 0, 8), v)
}

// DecodeOperand reads a little-endian operand of the given width from the
// start of buf.
func DecodeOperand(buf []byte, width int) (uint64, error) {
	if len(buf) < width {
		return 0, fmt.Errorf("need %d operand bytes, have %d: %w", width, len(buf), ErrUnexpectedEnd)
	}
	switch width {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf)), nil
	case 8:
		return binary.LittleEndian.Uint64(buf), nil
	}
	return 0, fmt.Errorf("invalid operand width %d", width)
}

// AppendInstruction appends the encoding of one instruction.
func AppendInstruction(buf []byte, ins Instruction) []byte {
	if ins.isOperand {
		return AppendOperand(buf, ins.Value)
	}
	return append(buf, byte(ins.Op))
}

// EncodeInstructions serializes an instruction sequence into a flat buffer.
func EncodeInstructions(ins []Instruction) []byte {
	buf := make([]byte, 0, len(ins)+len(ins)/4)
	for _, i := range ins {
		buf = AppendInstruction(buf, i)
	}
	return buf
}

// EncodedLen returns the encoded byte length of an instruction sequence.
func EncodedLen(ins []Instruction) int {
	n := 0
	for _, i := range ins {
		if i.isOperand {
			n += OperandWidth(i.Value)
		} else {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Chunk
// ---------------------------------------------------------------------------

// Chunk is a compiled unit: an instruction sequence and the constant pool
// its operands index into.
type Chunk struct {
	Ops       []Instruction
	Constants []Value
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Ops:       make([]Instruction, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// AddConstant adds a value to the pool and returns its index.
// If an equal value already exists, returns the existing index.
func (c *Chunk) AddConstant(v Value) int {
	if idx, ok := c.LookupConstant(v); ok {
		return idx
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// LookupConstant returns the index of a pool entry equal to v.
func (c *Chunk) LookupConstant(v Value) (int, bool) {
	for i, existing := range c.Constants {
		if Equal(existing, v) {
			return i, true
		}
	}
	return 0, false
}

// GetConstant returns the constant at the given index.
func (c *Chunk) GetConstant(index int) (Value, error) {
	if index < 0 || index >= len(c.Constants) {
		return Value{}, fmt.Errorf("constant %d of %d: %w", index, len(c.Constants), ErrConstantOutOfRange)
	}
	return c.Constants[index], nil
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// Emit appends instructions to the sequence.
func (c *Chunk) Emit(ins ...Instruction) {
	c.Ops = append(c.Ops, ins...)
}

// Encode serializes the instruction sequence.
func (c *Chunk) Encode() []byte {
	return EncodeInstructions(c.Ops)
}

// CodeLen returns the encoded length of the instruction sequence.
func (c *Chunk) CodeLen() int {
	return EncodedLen(c.Ops)
}
