package bytecode

import "fmt"

// Opcode represents a bytecode instruction. Byte values are part of the
// encoded format and must not be renumbered.
type Opcode byte

const (
	OpReturn          Opcode = 0  // End of execution
	OpConstant        Opcode = 1  // Push constant: OpConstant <index:u8>
	OpLongConstant    Opcode = 2  // Push constant: OpLongConstant <index:u16>
	OpAdd             Opcode = 3  // <expr> <expr>
	OpSubtract        Opcode = 4  // <expr> <expr>
	OpMultiply        Opcode = 5  // <expr> <expr>
	OpDivide          Opcode = 6  // <expr> <expr>
	OpNegate          Opcode = 7  // <expr>
	OpAnd             Opcode = 8  // <expr> <expr>
	OpOr              Opcode = 9  // <expr> <expr>
	OpEquals          Opcode = 10 // <expr> <expr>
	OpGreater         Opcode = 11 // <expr> <expr>
	OpGreaterEqual    Opcode = 12 // <expr> <expr>
	OpLesser          Opcode = 13 // <expr> <expr>
	OpLesserEqual     Opcode = 14 // <expr> <expr>
	OpVar             Opcode = 15 // Declare slot: OpVar <name:u8>
	OpAssign          Opcode = 16 // OpAssign <name:u8> <expr>
	OpPop             Opcode = 17 // Drop slots: OpPop <count:u8>
	OpGet             Opcode = 18 // Read slot: OpGet <name:u8>
	OpJumpBackIfTrue  Opcode = 19 // <expr> <delta:u8>
	OpJumpBackIfFalse Opcode = 20 // <expr> <delta:u8>
	OpJumpIfTrue      Opcode = 21 // <expr> <delta:u8>
	OpJumpIfFalse     Opcode = 22 // <expr> <delta:u8>
	OpNotEquals       Opcode = 23 // <expr> <expr>
)

// OpcodeInfo provides metadata about each opcode for the VM, the
// disassembler and the symbolic codec.
type OpcodeInfo struct {
	Name        string // Human-readable name
	Symbol      rune   // Printable symbol used by the symbolic serialization
	Operands    int    // Fixed-width operand bytes read directly after the opcode
	SubExprs    int    // Sub-expressions consumed after the leading operands
	TrailingLen int    // Operand bytes read after the sub-expressions
}

// opcodeInfoTable is indexed by opcode byte value.
var opcodeInfoTable = [...]OpcodeInfo{
	OpReturn:          {"RETURN", '🔚', 0, 0, 0},
	OpConstant:        {"CONSTANT", '🧱', 1, 0, 0},
	OpLongConstant:    {"LONG_CONSTANT", '🔧', 2, 0, 0},
	OpAdd:             {"ADD", '➕', 0, 2, 0},
	OpSubtract:        {"SUBTRACT", '➖', 0, 2, 0},
	OpMultiply:        {"MULTIPLY", '❌', 0, 2, 0},
	OpDivide:          {"DIVIDE", '➗', 0, 2, 0},
	OpNegate:          {"NEGATE", '❗', 0, 1, 0},
	OpAnd:             {"AND", '✨', 0, 2, 0},
	OpOr:              {"OR", '🥺', 0, 2, 0},
	OpEquals:          {"EQUALS", '😐', 0, 2, 0},
	OpGreater:         {"GREATER", '😌', 0, 2, 0},
	OpGreaterEqual:    {"GREATER_EQUAL", '📈', 0, 2, 0},
	OpLesser:          {"LESSER", '😔', 0, 2, 0},
	OpLesserEqual:     {"LESSER_EQUAL", '📉', 0, 2, 0},
	OpVar:             {"VAR", '🛹', 1, 0, 0},
	OpAssign:          {"ASSIGN", '📝', 1, 1, 0},
	OpPop:             {"POP", '📖', 1, 0, 0},
	OpGet:             {"GET", '📚', 1, 0, 0},
	OpJumpBackIfTrue:  {"JUMP_BACK_IF_TRUE", '🦘', 0, 1, 1},
	OpJumpBackIfFalse: {"JUMP_BACK_IF_FALSE", '🔙', 0, 1, 1},
	OpJumpIfTrue:      {"JUMP_IF_TRUE", '🔛', 0, 1, 1},
	OpJumpIfFalse:     {"JUMP_IF_FALSE", '🔜', 0, 1, 1},
	OpNotEquals:       {"NOT_EQUALS", '😭', 0, 2, 0},
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return int(op) < len(opcodeInfoTable)
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes the VM reads for this
// opcode, leading and trailing combined.
func (op Opcode) OperandLen() int {
	info := GetOpcodeInfo(op)
	return info.Operands + info.TrailingLen
}

// IsJump returns true if this opcode moves the cursor.
func (op Opcode) IsJump() bool {
	return op >= OpJumpBackIfTrue && op <= OpJumpIfFalse
}

// IsBackwardJump returns true for the jump opcodes that decrease the cursor.
func (op Opcode) IsBackwardJump() bool {
	return op == OpJumpBackIfTrue || op == OpJumpBackIfFalse
}

// JumpsWhen returns the condition truthiness that makes a jump opcode jump.
func (op Opcode) JumpsWhen() bool {
	return op == OpJumpBackIfTrue || op == OpJumpIfTrue
}

// AllOpcodes returns a slice of all defined opcodes in byte order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, len(opcodeInfoTable))
	for i := range opcodeInfoTable {
		opcodes[i] = Opcode(i)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
