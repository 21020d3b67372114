package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	seen := make(map[rune]Opcode)
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if info.Symbol < 256 {
			t.Errorf("%s symbol %q collides with raw operand runes", op, info.Symbol)
		}
		if prev, dup := seen[info.Symbol]; dup {
			t.Errorf("%s and %s share symbol %q", prev, op, info.Symbol)
		}
		seen[info.Symbol] = op
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 24 {
		t.Errorf("OpcodeCount() = %d, want 24", got)
	}
}

func TestOpcodeByteValues(t *testing.T) {
	tests := []struct {
		op   Opcode
		want byte
	}{
		{OpReturn, 0},
		{OpConstant, 1},
		{OpLongConstant, 2},
		{OpAdd, 3},
		{OpNegate, 7},
		{OpAnd, 8},
		{OpEquals, 10},
		{OpLesserEqual, 14},
		{OpVar, 15},
		{OpAssign, 16},
		{OpPop, 17},
		{OpGet, 18},
		{OpJumpBackIfTrue, 19},
		{OpJumpBackIfFalse, 20},
		{OpJumpIfTrue, 21},
		{OpJumpIfFalse, 22},
		{OpNotEquals, 23},
	}

	for _, tt := range tests {
		if byte(tt.op) != tt.want {
			t.Errorf("%s = %d, want %d", tt.op, byte(tt.op), tt.want)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpReturn, "RETURN"},
		{OpConstant, "CONSTANT"},
		{OpLongConstant, "LONG_CONSTANT"},
		{OpLesser, "LESSER"},
		{OpJumpBackIfTrue, "JUMP_BACK_IF_TRUE"},
		{OpNotEquals, "NOT_EQUALS"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if op.Valid() {
		t.Fatal("0xEE should not be a valid opcode")
	}
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestOpcodeOperandLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpReturn, 0},
		{OpConstant, 1},
		{OpLongConstant, 2},
		{OpAdd, 0},
		{OpVar, 1},
		{OpAssign, 1},
		{OpPop, 1},
		{OpGet, 1},
		{OpJumpIfFalse, 1},
		{OpJumpBackIfTrue, 1},
	}

	for _, tt := range tests {
		if got := tt.op.OperandLen(); got != tt.want {
			t.Errorf("%s.OperandLen() = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestJumpClassification(t *testing.T) {
	tests := []struct {
		op        Opcode
		jump      bool
		backward  bool
		jumpsWhen bool
	}{
		{OpJumpBackIfTrue, true, true, true},
		{OpJumpBackIfFalse, true, true, false},
		{OpJumpIfTrue, true, false, true},
		{OpJumpIfFalse, true, false, false},
		{OpGet, false, false, false},
		{OpNotEquals, false, false, false},
	}

	for _, tt := range tests {
		if got := tt.op.IsJump(); got != tt.jump {
			t.Errorf("%s.IsJump() = %v, want %v", tt.op, got, tt.jump)
		}
		if got := tt.op.IsBackwardJump(); got != tt.backward {
			t.Errorf("%s.IsBackwardJump() = %v, want %v", tt.op, got, tt.backward)
		}
		if tt.jump {
			if got := tt.op.JumpsWhen(); got != tt.jumpsWhen {
				t.Errorf("%s.JumpsWhen() = %v, want %v", tt.op, got, tt.jumpsWhen)
			}
		}
	}
}
