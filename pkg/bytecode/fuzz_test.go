package bytecode

import (
	"bytes"
	"testing"

	"github.com/chazu/loxvm/pkg/parser"
)

// ---------------------------------------------------------------------------
// FuzzVM: arbitrary buffers must fail with an error, never a panic.
// ---------------------------------------------------------------------------

func FuzzVM(f *testing.F) {
	f.Add([]byte{byte(OpAdd), byte(OpConstant), 0, byte(OpConstant), 1, byte(OpReturn)})
	f.Add([]byte{byte(OpVar), 0, byte(OpPop), 1})
	f.Add([]byte{byte(OpJumpBackIfTrue), byte(OpConstant), 1, 4})
	f.Add([]byte{byte(OpLongConstant), 0xff})
	f.Add([]byte{255, 0, 1})
	f.Add([]byte{})

	constants := []Value{Text("a"), Bool(true), Number(2)}

	f.Fuzz(func(t *testing.T, code []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("VM panicked on %v: %v", code, r)
			}
		}()

		vm := NewVM(code, constants)
		vm.MaxDepth = 64
		// Backward jumps can loop forever, so bound the step count
		for i := 0; i < 1000 && !vm.Done(); i++ {
			if _, err := vm.Step(); err != nil {
				return
			}
		}
	})
}

// FuzzSymbols checks the emoji form round trips for any buffer.
func FuzzSymbols(f *testing.F) {
	f.Add([]byte{byte(OpAdd), byte(OpConstant), 0, byte(OpConstant), 1})
	f.Add([]byte{byte(OpJumpIfFalse), byte(OpGet), 3, 9})
	f.Add([]byte{0xff, 0x80, 0x00})

	f.Fuzz(func(t *testing.T, code []byte) {
		if got := DecodeSymbols(EncodeSymbols(code)); !bytes.Equal(got, code) {
			t.Fatalf("round trip of %v = %v", code, got)
		}
	})
}

// FuzzCompile compiles whatever parses and disassembles the result without
// running it. Dropped reads of unknown names can leave operators short of
// operands, so decode errors are expected; panics are not.
func FuzzCompile(f *testing.F) {
	for _, s := range []string{
		`1 + 2 * 3;`,
		`var n = 0; while (n < 5) { n = n + 1; }`,
		`{ var a = 1; { var b = a; } }`,
		`if (x) y = 1; else y = 2;`,
	} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, src string) {
		stmts, err := parser.Parse(src)
		if err != nil {
			return
		}
		chunk, err := Compile(stmts)
		if err != nil {
			return
		}
		code := chunk.Encode()
		if len(code) == 0 || code[len(code)-1] != byte(OpReturn) {
			t.Fatalf("compiled code for %q does not end in RETURN: %v", src, code)
		}
		chunk.Disassemble()
	})
}
