package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// runSource compiles src and runs it on a fresh VM.
func runSource(t *testing.T, src string) (*VM, Value, error) {
	t.Helper()
	vm := NewVMForChunk(compileSource(t, src))
	v, err := vm.Run()
	return vm, v, err
}

func TestVMArithmeticPrecedence(t *testing.T) {
	_, v, err := runSource(t, "1 + 2 * 3;")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(v, Number(7)) {
		t.Errorf("result = %#v, want Number(7)", v)
	}
}

func TestVMWhileLoop(t *testing.T) {
	vm, _, err := runSource(t, "var n = 0; while (n < 5) { n = n + 1; }")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stack := vm.Stack()
	if len(stack) != 1 {
		t.Fatalf("stack has %d slots, want 1: %v", len(stack), stack)
	}
	if name := vm.SlotName(stack[0]); name != "n" {
		t.Errorf("slot name = %q, want n", name)
	}
	if !Equal(stack[0].Value, Number(5)) {
		t.Errorf("n = %#v, want Number(5)", stack[0].Value)
	}
}

func TestVMWhileBodyRunsBeforeFirstTest(t *testing.T) {
	vm, _, err := runSource(t, "var n = 10; while (n < 5) { n = n + 1; }")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := vm.Lookup("n"); !Equal(v, Number(11)) {
		t.Errorf("n = %#v, want Number(11)", v)
	}
}

func TestVMBlockPopsDeclarations(t *testing.T) {
	vm, _, err := runSource(t, "{ var a = 1; var b = 2; }")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stack := vm.Stack(); len(stack) != 0 {
		t.Errorf("stack = %v, want empty", stack)
	}
}

func TestVMNestedBlockLosesOuterVariable(t *testing.T) {
	_, _, err := runSource(t, "{ var a = 1; { var b = 2; } a = 3; }")
	if !errors.Is(err, ErrUnresolvedVariable) {
		t.Errorf("err = %v, want ErrUnresolvedVariable", err)
	}
}

func TestVMAssignUndeclared(t *testing.T) {
	_, _, err := runSource(t, "x = 1;")
	if !errors.Is(err, ErrUnresolvedVariable) {
		t.Fatalf("err = %v, want ErrUnresolvedVariable", err)
	}
	var vmErr *Error
	if !errors.As(err, &vmErr) || vmErr.Offset != 0 {
		t.Errorf("err = %#v, want offset 0", err)
	}
}

func TestVMGetAfterPop(t *testing.T) {
	_, _, err := runSource(t, "{ var a = 1; } var b = a;")
	if !errors.Is(err, ErrUnresolvedVariable) {
		t.Errorf("err = %v, want ErrUnresolvedVariable", err)
	}
}

func TestVMConditional(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want map[string]Value
	}{
		{
			name: "taken",
			src:  "var x = 0; if (true) x = 1;",
			want: map[string]Value{"x": Number(1)},
		},
		{
			name: "skipped",
			src:  "var x = 0; if (false) x = 1;",
			want: map[string]Value{"x": Number(0)},
		},
		{
			name: "nil is falsy",
			src:  "var x = 0; if (nil) x = 1;",
			want: map[string]Value{"x": Number(0)},
		},
		{
			name: "else after false",
			src:  "var t = 0; var e = 0; if (false) t = 1; else e = 1;",
			want: map[string]Value{"t": Number(0), "e": Number(1)},
		},
		{
			// No jump skips the else branch, so both branches run
			name: "else after true",
			src:  "var t = 0; var e = 0; if (true) t = 1; else e = 1;",
			want: map[string]Value{"t": Number(1), "e": Number(1)},
		},
		{
			name: "block branch",
			src:  "var x = 0; if (1 < 2) { x = x + 10; }",
			want: map[string]Value{"x": Number(10)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, _, err := runSource(t, tt.src)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			for name, want := range tt.want {
				got, ok := vm.Lookup(name)
				if !ok {
					t.Errorf("%s not found", name)
					continue
				}
				if !Equal(got, want) {
					t.Errorf("%s = %#v, want %#v", name, got, want)
				}
			}
		})
	}
}

func TestVMExpressions(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{"10 - 4;", Number(6)},
		{"10 / 4;", Number(2.5)},
		{"-3;", Number(-3)},
		{"!true;", Bool(false)},
		{`"a" + "b";`, Text("ab")},
		{`"a" - "b";`, Nil()},
		{"1 == 1;", Bool(true)},
		{"1 != 1;", Bool(false)},
		{`1 == "1";`, Bool(false)},
		{"2 > 1;", Bool(true)},
		{"2 >= 2;", Bool(true)},
		{"1 < 1;", Bool(false)},
		{"1 <= 1;", Bool(true)},
		{`1 < "2";`, Bool(false)},
		{"true and nil;", Bool(false)},
		{"nil or 1;", Bool(true)},
		{"(1 + 2) * 3;", Number(9)},
		{"var a = 4; a * a;", Number(16)},
	}

	for _, tt := range tests {
		_, v, err := runSource(t, tt.src)
		if err != nil {
			t.Errorf("%q: %v", tt.src, err)
			continue
		}
		if !Equal(v, tt.want) {
			t.Errorf("%q = %#v, want %#v", tt.src, v, tt.want)
		}
	}
}

func TestVMLongConstant(t *testing.T) {
	c := NewChunk()
	for i := 0; i < 300; i++ {
		c.AddConstant(Number(float64(i)))
	}
	c.Emit(Op(OpLongConstant), Operand(299), Op(OpReturn))

	code := c.Encode()
	if len(code) != 4 {
		t.Fatalf("code = %v, want 4 bytes", code)
	}
	v, err := NewVM(code, c.Constants).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(v, Number(299)) {
		t.Errorf("result = %#v, want Number(299)", v)
	}
}

func TestVMReturnHalts(t *testing.T) {
	code := []byte{byte(OpConstant), 0, byte(OpReturn), byte(OpConstant), 1}
	vm := NewVM(code, []Value{Number(1), Number(2)})

	v, err := vm.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(v, Number(1)) {
		t.Errorf("result = %#v, want Number(1)", v)
	}
	if vm.IP() != 3 {
		t.Errorf("IP() = %d, want 3", vm.IP())
	}
}

func TestVMStepReportsReturn(t *testing.T) {
	vm := NewVM([]byte{byte(OpReturn)}, nil)
	if _, err := vm.Step(); !errors.Is(err, ErrNormalReturn) {
		t.Errorf("Step err = %v, want ErrNormalReturn", err)
	}
	if !vm.Done() {
		t.Error("Done() = false after consuming the only byte")
	}
}

func TestVMRunsToEndWithoutReturn(t *testing.T) {
	code := []byte{byte(OpConstant), 0}
	v, err := NewVM(code, []Value{Text("end")}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(v, Text("end")) {
		t.Errorf("result = %#v", v)
	}
}

func TestVMErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      []byte
		constants []Value
		want      error
	}{
		{"invalid opcode", []byte{200}, nil, ErrInvalidOpcode},
		{"invalid nested opcode", []byte{byte(OpNegate), 99}, nil, ErrInvalidOpcode},
		{"missing constant operand", []byte{byte(OpConstant)}, []Value{Nil()}, ErrUnexpectedEnd},
		{"short long constant", []byte{byte(OpLongConstant), 0}, []Value{Nil()}, ErrUnexpectedEnd},
		{"missing right operand", []byte{byte(OpAdd), byte(OpConstant), 0}, []Value{Number(1)}, ErrUnexpectedEnd},
		{"missing jump delta", []byte{byte(OpJumpIfTrue), byte(OpConstant), 0}, []Value{Bool(true)}, ErrUnexpectedEnd},
		{"constant out of range", []byte{byte(OpConstant), 5}, nil, ErrConstantOutOfRange},
		{"pop underflow", []byte{byte(OpVar), 0, byte(OpPop), 2}, []Value{Text("a")}, ErrStackUnderflow},
		{"get unresolved", []byte{byte(OpGet), 0}, []Value{Text("a")}, ErrUnresolvedVariable},
		{"forward jump past end", []byte{byte(OpJumpIfTrue), byte(OpConstant), 0, 50}, []Value{Bool(true)}, ErrJumpOutOfRange},
		{"backward jump before start", []byte{byte(OpJumpBackIfTrue), byte(OpConstant), 0, 50}, []Value{Bool(true)}, ErrJumpOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVM(tt.code, tt.constants).Run()
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVMJumpNotTakenConsumesDelta(t *testing.T) {
	// JUMP_IF_TRUE <false> 50, then a constant load
	code := []byte{byte(OpJumpIfTrue), byte(OpConstant), 0, 50, byte(OpConstant), 1}
	v, err := NewVM(code, []Value{Bool(false), Text("next")}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(v, Text("next")) {
		t.Errorf("result = %#v, want Text(\"next\")", v)
	}
}

func TestVMJumpToEnd(t *testing.T) {
	code := []byte{byte(OpJumpIfTrue), byte(OpConstant), 0, 2, byte(OpConstant), 0}
	vm := NewVM(code, []Value{Bool(true)})
	if _, err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !vm.Done() {
		t.Errorf("IP() = %d, want end of buffer", vm.IP())
	}
}

func TestVMDepthExceeded(t *testing.T) {
	code := append(bytes.Repeat([]byte{byte(OpNegate)}, 100), byte(OpConstant), 0)
	vm := NewVM(code, []Value{Number(1)})
	vm.MaxDepth = 50

	if _, err := vm.Run(); !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("err = %v, want ErrDepthExceeded", err)
	}

	vm.Reset()
	vm.MaxDepth = 0 // default limit is deep enough
	v, err := vm.Run()
	if err != nil {
		t.Fatalf("Run with default depth: %v", err)
	}
	if !Equal(v, Number(1)) {
		t.Errorf("result = %#v, want Number(1)", v)
	}
}

func TestVMInstancesAreIndependent(t *testing.T) {
	chunk := compileSource(t, "var n = 1; n = n + 1;")
	a := NewVMForChunk(chunk)
	b := NewVMForChunk(chunk)

	if _, err := a.Run(); err != nil {
		t.Fatal(err)
	}
	if len(b.Stack()) != 0 || b.IP() != 0 {
		t.Errorf("running one VM changed another: stack=%v ip=%d", b.Stack(), b.IP())
	}
	if _, err := b.Run(); err != nil {
		t.Fatal(err)
	}
	va, _ := a.Lookup("n")
	vb, _ := b.Lookup("n")
	if !Equal(va, Number(2)) || !Equal(vb, Number(2)) {
		t.Errorf("a.n = %#v, b.n = %#v, want Number(2) each", va, vb)
	}
}

func TestVMStackIsACopy(t *testing.T) {
	vm, _, err := runSource(t, "var a = 1;")
	if err != nil {
		t.Fatal(err)
	}
	s := vm.Stack()
	s[0].Value = Number(99)
	if v, _ := vm.Lookup("a"); !Equal(v, Number(1)) {
		t.Errorf("mutating Stack() result changed the VM: a = %#v", v)
	}
}

func TestVMTrace(t *testing.T) {
	vm := NewVMForChunk(compileSource(t, "1 + 2;"))
	vm.Trace = true
	v, err := vm.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(v, Number(3)) {
		t.Errorf("result = %#v, want Number(3)", v)
	}
}

func TestVMExtend(t *testing.T) {
	comp := NewCompiler()
	vm := NewVM(nil, nil)

	for _, line := range []string{"var n = 1;", "n = n + 1;", "n * 10;"} {
		stmts := parseSource(t, line)
		for _, stmt := range stmts {
			ops, err := comp.CompileStatement(stmt)
			if err != nil {
				t.Fatal(err)
			}
			comp.Chunk().Emit(ops...)
		}
		vm.Extend(comp.Chunk().Encode(), comp.Chunk().Constants)

		v, err := vm.Run()
		if err != nil {
			t.Fatalf("%q: %v", line, err)
		}
		if line == "n * 10;" && !Equal(v, Number(20)) {
			t.Errorf("result = %#v, want Number(20)", v)
		}
	}

	if len(vm.Stack()) != 1 {
		t.Errorf("stack = %v, want one slot", vm.Stack())
	}
}

func TestVMDepthCountsOperatorChains(t *testing.T) {
	src := "1" + strings.Repeat(" + 1", 1100) + ";"

	_, _, err := runSource(t, src)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("err = %v, want ErrDepthExceeded at the default depth", err)
	}

	vm := NewVMForChunk(compileSource(t, src))
	vm.MaxDepth = 2048
	v, err := vm.Run()
	if err != nil {
		t.Fatalf("Run with MaxDepth 2048: %v", err)
	}
	if !Equal(v, Number(1101)) {
		t.Errorf("result = %#v, want Number(1101)", v)
	}
}
