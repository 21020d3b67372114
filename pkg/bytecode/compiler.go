package bytecode

import (
	"fmt"
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/loxvm/pkg/ast"
)

var compilerLog = commonlog.GetLogger("loxvm.compiler")

// CompilerVersion identifies the lowering rules. Bump it whenever the same
// source would compile to different bytes, so cached output is not reused.
const CompilerVersion uint32 = 1

// loopTrailer is the encoded size of the JumpBackIfTrue opcode and its
// one-byte delta, both of which the backward jump must also cross.
const loopTrailer = 2

// Compiler lowers statement trees into a prefix-order instruction sequence.
//
// Variable declarations inside a block are counted in a single pending-pop
// counter that is reset to zero whenever any block exits. An inner block
// therefore pops the outer block's declarations as well as its own.
type Compiler struct {
	chunk *Chunk

	// Declarations emitted inside blocks since the last block exit
	pendingPops int

	// Block nesting depth
	depth int
}

// NewCompiler creates a compiler with an empty constant pool.
func NewCompiler() *Compiler {
	return &Compiler{chunk: NewChunk()}
}

// Compile lowers a program into a chunk terminated by OpReturn.
// This is the main entry point for compilation.
func Compile(stmts []ast.Stmt) (*Chunk, error) {
	c := NewCompiler()
	for _, stmt := range stmts {
		ops, err := c.CompileStatement(stmt)
		if err != nil {
			return nil, err
		}
		c.chunk.Emit(ops...)
	}
	c.chunk.Emit(Op(OpReturn))

	compilerLog.Debugf("compiled %d statements: %d instructions, %d constants",
		len(stmts), len(c.chunk.Ops), len(c.chunk.Constants))
	return c.chunk, nil
}

// Chunk returns the chunk holding the compiler's constant pool.
func (c *Compiler) Chunk() *Chunk {
	return c.chunk
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// CompileStatement lowers one statement. The result is not appended to the
// chunk; only the constant pool is updated. On error the pending-pop count
// and block depth are restored, so a long-lived compiler stays usable.
func (c *Compiler) CompileStatement(stmt ast.Stmt) ([]Instruction, error) {
	pops, depth := c.pendingPops, c.depth
	ops, err := c.compileStatement(stmt)
	if err != nil {
		c.pendingPops, c.depth = pops, depth
		return nil, err
	}
	return ops, nil
}

func (c *Compiler) compileStatement(stmt ast.Stmt) ([]Instruction, error) {
	switch n := stmt.(type) {
	case *ast.ExprStmt:
		return c.CompileExpression(n.Expr)

	case *ast.VarDecl:
		return c.compileVarDecl(n)

	case *ast.Block:
		return c.compileBlock(n)

	case *ast.If:
		return c.compileIf(n)

	case *ast.While:
		return c.compileWhile(n)

	default:
		return nil, fmt.Errorf("cannot compile statement %T", stmt)
	}
}

func (c *Compiler) compileVarDecl(n *ast.VarDecl) ([]Instruction, error) {
	idx := c.chunk.AddConstant(Text(n.Name))
	if err := checkOperand(OpVar, idx); err != nil {
		return nil, err
	}
	if c.depth > 0 {
		c.pendingPops++
	}

	ops := []Instruction{Op(OpVar), Operand(uint64(idx))}
	if n.Init != nil {
		value, err := c.CompileExpression(n.Init)
		if err != nil {
			return nil, err
		}
		ops = append(ops, Op(OpAssign), Operand(uint64(idx)))
		ops = append(ops, value...)
	}
	return ops, nil
}

func (c *Compiler) compileBlock(n *ast.Block) ([]Instruction, error) {
	c.depth++
	defer func() { c.depth-- }()

	var ops []Instruction
	for _, stmt := range n.Statements {
		inner, err := c.CompileStatement(stmt)
		if err != nil {
			return nil, err
		}
		ops = append(ops, inner...)
	}

	if c.pendingPops != 0 {
		if err := checkOperand(OpPop, c.pendingPops); err != nil {
			return nil, err
		}
		ops = append(ops, Op(OpPop), Operand(uint64(c.pendingPops)))
	}
	c.pendingPops = 0

	return ops, nil
}

// compileIf emits JumpIfFalse <cond> <delta> <then> <else>. The delta skips
// the then-branch. No jump skips the else-branch, so it also runs after a
// taken then-branch.
func (c *Compiler) compileIf(n *ast.If) ([]Instruction, error) {
	cond, err := c.CompileExpression(n.Condition)
	if err != nil {
		return nil, err
	}
	then, err := c.CompileStatement(n.Then)
	if err != nil {
		return nil, err
	}

	delta := EncodedLen(then)
	if err := checkOperand(OpJumpIfFalse, delta); err != nil {
		return nil, err
	}

	ops := make([]Instruction, 0, len(cond)+len(then)+2)
	ops = append(ops, Op(OpJumpIfFalse))
	ops = append(ops, cond...)
	ops = append(ops, Operand(uint64(delta)))
	ops = append(ops, then...)

	if n.Else != nil {
		els, err := c.CompileStatement(n.Else)
		if err != nil {
			return nil, err
		}
		ops = append(ops, els...)
	}
	return ops, nil
}

// compileWhile emits <body> JumpBackIfTrue <cond> <delta>. The body runs
// once before the condition is first tested; the delta lands the cursor
// back on the first byte of the body.
func (c *Compiler) compileWhile(n *ast.While) ([]Instruction, error) {
	body, err := c.CompileStatement(n.Body)
	if err != nil {
		return nil, err
	}
	cond, err := c.CompileExpression(n.Condition)
	if err != nil {
		return nil, err
	}

	back := EncodedLen(cond) + EncodedLen(body) + loopTrailer
	if err := checkOperand(OpJumpBackIfTrue, back); err != nil {
		return nil, err
	}

	ops := make([]Instruction, 0, len(body)+len(cond)+2)
	ops = append(ops, body...)
	ops = append(ops, Op(OpJumpBackIfTrue))
	ops = append(ops, cond...)
	ops = append(ops, Operand(uint64(back)))
	return ops, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[ast.Operator]Opcode{
	ast.OpPlus:         OpAdd,
	ast.OpMinus:        OpSubtract,
	ast.OpStar:         OpMultiply,
	ast.OpSlash:        OpDivide,
	ast.OpEqualEqual:   OpEquals,
	ast.OpBangEqual:    OpNotEquals,
	ast.OpGreater:      OpGreater,
	ast.OpGreaterEqual: OpGreaterEqual,
	ast.OpLess:         OpLesser,
	ast.OpLessEqual:    OpLesserEqual,
	ast.OpAnd:          OpAnd,
	ast.OpOr:           OpOr,
}

// CompileExpression lowers an expression in prefix order: the operator
// first, then each operand in the order the VM consumes them.
func (c *Compiler) CompileExpression(expr ast.Expr) ([]Instruction, error) {
	switch n := expr.(type) {
	case *ast.NumberLiteral:
		return c.constant(Number(n.Value))
	case *ast.StringLiteral:
		return c.constant(Text(n.Value))
	case *ast.BoolLiteral:
		return c.constant(Bool(n.Value))
	case *ast.NilLiteral:
		return c.constant(Nil())

	case *ast.Grouping:
		return c.CompileExpression(n.Inner)

	case *ast.Unary:
		operand, err := c.CompileExpression(n.Operand)
		if err != nil {
			return nil, err
		}
		return append([]Instruction{Op(OpNegate)}, operand...), nil

	case *ast.Binary:
		return c.compileOperator(n.Op, n.Left, n.Right)

	case *ast.Logical:
		return c.compileOperator(n.Op, n.Left, n.Right)

	case *ast.Variable:
		idx, ok := c.chunk.LookupConstant(Text(n.Name))
		if !ok {
			// Names never declared or assigned are dropped
			compilerLog.Debugf("dropping reference to unknown name %q", n.Name)
			return nil, nil
		}
		if err := checkOperand(OpGet, idx); err != nil {
			return nil, err
		}
		return []Instruction{Op(OpGet), Operand(uint64(idx))}, nil

	case *ast.Assignment:
		idx := c.chunk.AddConstant(Text(n.Name))
		if err := checkOperand(OpAssign, idx); err != nil {
			return nil, err
		}
		value, err := c.CompileExpression(n.Value)
		if err != nil {
			return nil, err
		}
		return append([]Instruction{Op(OpAssign), Operand(uint64(idx))}, value...), nil

	default:
		return nil, fmt.Errorf("cannot compile expression %T", expr)
	}
}

func (c *Compiler) compileOperator(op ast.Operator, left, right ast.Expr) ([]Instruction, error) {
	opcode, ok := binaryOpcodes[op]
	if !ok {
		return nil, fmt.Errorf("no opcode for operator %s", op)
	}
	l, err := c.CompileExpression(left)
	if err != nil {
		return nil, err
	}
	r, err := c.CompileExpression(right)
	if err != nil {
		return nil, err
	}
	ops := make([]Instruction, 0, 1+len(l)+len(r))
	ops = append(ops, Op(opcode))
	ops = append(ops, l...)
	return append(ops, r...), nil
}

// constant interns v and emits the load that matches the index width.
func (c *Compiler) constant(v Value) ([]Instruction, error) {
	idx := c.chunk.AddConstant(v)
	op := OpConstant
	if idx >= math.MaxUint8 {
		op = OpLongConstant
	}
	if err := checkOperand(op, idx); err != nil {
		return nil, err
	}
	return []Instruction{Op(op), Operand(uint64(idx))}, nil
}

// checkOperand rejects operands whose encoded width differs from the fixed
// width the VM reads for op.
func checkOperand(op Opcode, v int) error {
	want := GetOpcodeInfo(op).Operands
	if want == 0 {
		want = GetOpcodeInfo(op).TrailingLen
	}
	if v < 0 || OperandWidth(uint64(v)) != want {
		return newError(KindOperandOverflow, -1, "%s operand %d does not fit in %d byte(s)", op, v, want)
	}
	return nil
}
