package parser

import (
	"strings"
	"testing"

	"github.com/chazu/loxvm/pkg/ast"
)

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3;", "(+ 1 (* 2 3));"},
		{"(1 + 2) * 3;", "(* (group (+ 1 2)) 3);"},
		{"1 - 2 - 3;", "(- (- 1 2) 3);"},
		{"-a * b;", "(* (- a) b);"},
		{"!!true;", "(! (! true));"},
		{"a < b == c >= d;", "(== (< a b) (>= c d));"},
		{"a or b and c;", "(or a (and b c));"},
		{"a = b = 1;", "(= a (= b 1));"},
		{`x = "hi" + nil;`, `(= x (+ "hi" nil));`},
		{"1 + 2", "(+ 1 2);"},
	}

	for _, tt := range tests {
		stmts, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		if got := ast.FormatProgram(stmts); got != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseStatements(t *testing.T) {
	input := `
var n = 0;
var m;
while (n < 5) { n = n + 1; }
if (n == 5) { var s = "done"; } else n = 0;
if (m) m = 1;
`
	stmts, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := strings.Join([]string{
		"(var n 0)",
		"(var m)",
		"(while (< n 5) {(= n (+ n 1));})",
		`(if (== n 5) {(var s "done")} else (= n 0);)`,
		"(if m (= m 1);)",
	}, "\n")
	if got := ast.FormatProgram(stmts); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestParseNodeTypes(t *testing.T) {
	stmts, err := Parse("{ var a; } while (true) a; if (a) a;")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stmts[0].(*ast.Block); !ok {
		t.Errorf("stmts[0] = %T, want *ast.Block", stmts[0])
	}
	if _, ok := stmts[1].(*ast.While); !ok {
		t.Errorf("stmts[1] = %T, want *ast.While", stmts[1])
	}
	if s, ok := stmts[2].(*ast.If); !ok || s.Else != nil {
		t.Errorf("stmts[2] = %#v, want *ast.If without else", stmts[2])
	}
}

func TestParseSpans(t *testing.T) {
	stmts, err := Parse("var x = 1;\nx = 2;")
	if err != nil {
		t.Fatal(err)
	}
	if line := stmts[1].Span().Start.Line; line != 2 {
		t.Errorf("second statement starts on line %d, want 2", line)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"var 1 = 2;", "expected variable name"},
		{"1 + ;", "expected expression"},
		{"(1 + 2;", "expected )"},
		{"1 = 2;", "invalid assignment target"},
		{"if 1) x;", "expected ("},
		{"{ var a = 1;", "expected }"},
		{"var a = 1\nvar b = 2;", "line 2"},
		{`"open`, "unterminated string"},
		{"}", "unexpected }"},
		{"var a = 1;\x00 a = 2;", "unexpected NUL byte"},
	}

	for _, tt := range tests {
		_, err := Parse(tt.input)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error containing %q", tt.input, tt.want)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Parse(%q) error = %q, want it to contain %q", tt.input, err, tt.want)
		}
	}
}

func TestParseCollectsMultipleErrors(t *testing.T) {
	p := NewParser("var = 1; 2 +; var ok = 3;")
	stmts := p.ParseProgram()
	if len(p.Errors()) != 2 {
		t.Errorf("Errors() = %v, want 2 errors", p.Errors())
	}
	if len(stmts) != 1 {
		t.Errorf("recovered %d statements, want 1", len(stmts))
	}
}
