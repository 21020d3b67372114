// Package ast defines the expression and statement trees consumed by the
// bytecode compiler.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// Operator identifies a unary, binary or logical operator.
type Operator int

const (
	OpPlus Operator = iota
	OpMinus
	OpStar
	OpSlash
	OpBang
	OpEqualEqual
	OpBangEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAnd
	OpOr
)

var operatorNames = map[Operator]string{
	OpPlus:         "+",
	OpMinus:        "-",
	OpStar:         "*",
	OpSlash:        "/",
	OpBang:         "!",
	OpEqualEqual:   "==",
	OpBangEqual:    "!=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpAnd:          "and",
	OpOr:           "or",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents 'true' or 'false'.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NilLiteral represents the 'nil' literal.
type NilLiteral struct {
	SpanVal Span
}

func (n *NilLiteral) Span() Span { return n.SpanVal }
func (n *NilLiteral) node()      {}
func (n *NilLiteral) expr()      {}

// Grouping represents a parenthesized expression.
type Grouping struct {
	SpanVal Span
	Inner   Expr
}

func (n *Grouping) Span() Span { return n.SpanVal }
func (n *Grouping) node()      {}
func (n *Grouping) expr()      {}

// Unary represents a prefix operator applied to one operand (-x, !x).
type Unary struct {
	SpanVal Span
	Op      Operator
	Operand Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// Binary represents an arithmetic or comparison expression.
type Binary struct {
	SpanVal Span
	Left    Expr
	Op      Operator
	Right   Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// Logical represents 'and' / 'or'.
type Logical struct {
	SpanVal Span
	Left    Expr
	Op      Operator
	Right   Expr
}

func (n *Logical) Span() Span { return n.SpanVal }
func (n *Logical) node()      {}
func (n *Logical) expr()      {}

// Variable represents a variable reference.
type Variable struct {
	SpanVal Span
	Name    string
}

func (n *Variable) Span() Span { return n.SpanVal }
func (n *Variable) node()      {}
func (n *Variable) expr()      {}

// Assignment represents a variable assignment (x = expr).
type Assignment struct {
	SpanVal Span
	Name    string
	Value   Expr
}

func (n *Assignment) Span() Span { return n.SpanVal }
func (n *Assignment) node()      {}
func (n *Assignment) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// VarDecl declares a variable, optionally with an initializer.
type VarDecl struct {
	SpanVal Span
	Name    string
	Init    Expr // nil when absent
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) stmt()      {}

// Block is a braced statement list.
type Block struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// If is a conditional statement. Else is nil when absent.
type If struct {
	SpanVal   Span
	Condition Expr
	Then      Stmt
	Else      Stmt
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// While is a loop statement.
type While struct {
	SpanVal   Span
	Condition Expr
	Body      Stmt
}

func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}
func (n *While) stmt()      {}

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

// Format renders a node as a parenthesized prefix form, e.g. (+ 1 (* 2 3)).
// Used for debugging and in parser tests.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

// FormatProgram formats each statement on its own line.
func FormatProgram(stmts []Stmt) string {
	lines := make([]string, 0, len(stmts))
	for _, s := range stmts {
		lines = append(lines, Format(s))
	}
	return strings.Join(lines, "\n")
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case *NumberLiteral:
		sb.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
	case *StringLiteral:
		sb.WriteString(strconv.Quote(n.Value))
	case *BoolLiteral:
		sb.WriteString(strconv.FormatBool(n.Value))
	case *NilLiteral:
		sb.WriteString("nil")
	case *Grouping:
		sb.WriteString("(group ")
		format(sb, n.Inner)
		sb.WriteString(")")
	case *Unary:
		fmt.Fprintf(sb, "(%s ", n.Op)
		format(sb, n.Operand)
		sb.WriteString(")")
	case *Binary:
		fmt.Fprintf(sb, "(%s ", n.Op)
		format(sb, n.Left)
		sb.WriteString(" ")
		format(sb, n.Right)
		sb.WriteString(")")
	case *Logical:
		fmt.Fprintf(sb, "(%s ", n.Op)
		format(sb, n.Left)
		sb.WriteString(" ")
		format(sb, n.Right)
		sb.WriteString(")")
	case *Variable:
		sb.WriteString(n.Name)
	case *Assignment:
		fmt.Fprintf(sb, "(= %s ", n.Name)
		format(sb, n.Value)
		sb.WriteString(")")
	case *ExprStmt:
		format(sb, n.Expr)
		sb.WriteString(";")
	case *VarDecl:
		fmt.Fprintf(sb, "(var %s", n.Name)
		if n.Init != nil {
			sb.WriteString(" ")
			format(sb, n.Init)
		}
		sb.WriteString(")")
	case *Block:
		sb.WriteString("{")
		for i, s := range n.Statements {
			if i > 0 {
				sb.WriteString(" ")
			}
			format(sb, s)
		}
		sb.WriteString("}")
	case *If:
		sb.WriteString("(if ")
		format(sb, n.Condition)
		sb.WriteString(" ")
		format(sb, n.Then)
		if n.Else != nil {
			sb.WriteString(" else ")
			format(sb, n.Else)
		}
		sb.WriteString(")")
	case *While:
		sb.WriteString("(while ")
		format(sb, n.Condition)
		sb.WriteString(" ")
		format(sb, n.Body)
		sb.WriteString(")")
	case nil:
		sb.WriteString("<nil>")
	default:
		fmt.Fprintf(sb, "<%T>", n)
	}
}
