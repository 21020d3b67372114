// Package parser converts source text into statement trees.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/loxvm/pkg/ast"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser
// ---------------------------------------------------------------------------

// Parser parses source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevToken Token
	errors    []string
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program. All accumulated errors are joined into
// the returned error.
func Parse(input string) ([]ast.Stmt, error) {
	p := NewParser(input)
	stmts := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse failed: %s", strings.Join(errs, "; "))
	}
	return stmts, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken)
	return false
}

// errorf records a parse error.
func (p *Parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf("line %d: %s", p.curToken.Pos.Line, fmt.Sprintf(format, args...))
	p.errors = append(p.errors, msg)
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string {
	return p.errors
}

// synchronize skips tokens until a likely statement boundary.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			return
		}
		switch p.curToken.Type {
		case TokenVar, TokenIf, TokenWhile, TokenLBrace, TokenRBrace:
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses declarations until EOF.
func (p *Parser) ParseProgram() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.curTokenIs(TokenEOF) {
		before := len(p.errors)
		stmt := p.parseDeclaration()
		if stmt != nil && len(p.errors) == before {
			stmts = append(stmts, stmt)
			continue
		}
		if p.curTokenIs(TokenRBrace) {
			// Stray closing brace at top level
			p.errorf("unexpected %s", p.curToken)
			p.nextToken()
			continue
		}
		p.synchronize()
	}
	return stmts
}

// parseDeclaration parses a var declaration or a statement.
func (p *Parser) parseDeclaration() ast.Stmt {
	if p.curTokenIs(TokenVar) {
		return p.parseVarDecl()
	}
	return p.parseStatement()
}

// parseVarDecl parses: var name ( = expr )? ;
func (p *Parser) parseVarDecl() ast.Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume var

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected variable name, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	var init ast.Expr
	if p.curTokenIs(TokenEqual) {
		p.nextToken()
		init = p.parseExpression()
		if init == nil {
			return nil
		}
	}

	if !p.expect(TokenSemicolon) {
		return nil
	}
	return &ast.VarDecl{SpanVal: p.spanFrom(start), Name: name, Init: init}
}

// parseStatement parses if, while, block or expression statements.
func (p *Parser) parseStatement() ast.Stmt {
	switch {
	case p.curTokenIs(TokenIf):
		return p.parseIf()
	case p.curTokenIs(TokenWhile):
		return p.parseWhile()
	case p.curTokenIs(TokenLBrace):
		return p.parseBlock()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseIf() ast.Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume if

	if !p.expect(TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	if cond == nil || !p.expect(TokenRParen) {
		return nil
	}

	then := p.parseStatement()
	if then == nil {
		return nil
	}

	var els ast.Stmt
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		els = p.parseStatement()
		if els == nil {
			return nil
		}
	}

	return &ast.If{SpanVal: p.spanFrom(start), Condition: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume while

	if !p.expect(TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	if cond == nil || !p.expect(TokenRParen) {
		return nil
	}

	body := p.parseStatement()
	if body == nil {
		return nil
	}

	return &ast.While{SpanVal: p.spanFrom(start), Condition: cond, Body: body}
}

func (p *Parser) parseBlock() ast.Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume {

	var stmts []ast.Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		stmt := p.parseDeclaration()
		if stmt == nil {
			return nil
		}
		stmts = append(stmts, stmt)
	}

	if !p.expect(TokenRBrace) {
		return nil
	}
	return &ast.Block{SpanVal: p.spanFrom(start), Statements: stmts}
}

func (p *Parser) parseExprStatement() ast.Stmt {
	start := p.curToken.Pos
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	// The last statement of the input may omit its semicolon
	if !p.curTokenIs(TokenEOF) && !p.expect(TokenSemicolon) {
		return nil
	}
	return &ast.ExprStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() ast.Expr {
	return p.parseAssignment()
}

// parseAssignment is right associative: a = b = c.
func (p *Parser) parseAssignment() ast.Expr {
	start := p.curToken.Pos
	expr := p.parseOr()
	if expr == nil {
		return nil
	}

	if p.curTokenIs(TokenEqual) {
		p.nextToken()
		value := p.parseAssignment()
		if value == nil {
			return nil
		}
		if v, ok := expr.(*ast.Variable); ok {
			return &ast.Assignment{SpanVal: p.spanFrom(start), Name: v.Name, Value: value}
		}
		p.errorf("invalid assignment target")
		return nil
	}

	return expr
}

func (p *Parser) parseOr() ast.Expr {
	return p.parseLogical(p.parseAnd, map[TokenType]ast.Operator{TokenOr: ast.OpOr})
}

func (p *Parser) parseAnd() ast.Expr {
	return p.parseLogical(p.parseEquality, map[TokenType]ast.Operator{TokenAnd: ast.OpAnd})
}

func (p *Parser) parseEquality() ast.Expr {
	return p.parseBinary(p.parseComparison, map[TokenType]ast.Operator{
		TokenEqualEqual: ast.OpEqualEqual,
		TokenBangEqual:  ast.OpBangEqual,
	})
}

func (p *Parser) parseComparison() ast.Expr {
	return p.parseBinary(p.parseTerm, map[TokenType]ast.Operator{
		TokenGreater:      ast.OpGreater,
		TokenGreaterEqual: ast.OpGreaterEqual,
		TokenLess:         ast.OpLess,
		TokenLessEqual:    ast.OpLessEqual,
	})
}

func (p *Parser) parseTerm() ast.Expr {
	return p.parseBinary(p.parseFactor, map[TokenType]ast.Operator{
		TokenPlus:  ast.OpPlus,
		TokenMinus: ast.OpMinus,
	})
}

func (p *Parser) parseFactor() ast.Expr {
	return p.parseBinary(p.parseUnary, map[TokenType]ast.Operator{
		TokenStar:  ast.OpStar,
		TokenSlash: ast.OpSlash,
	})
}

// parseBinary parses a left-associative chain of binary operators.
func (p *Parser) parseBinary(next func() ast.Expr, ops map[TokenType]ast.Operator) ast.Expr {
	start := p.curToken.Pos
	left := next()
	if left == nil {
		return nil
	}
	for {
		op, ok := ops[p.curToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		right := next()
		if right == nil {
			return nil
		}
		left = &ast.Binary{SpanVal: p.spanFrom(start), Left: left, Op: op, Right: right}
	}
}

// parseLogical is parseBinary for 'and' / 'or'.
func (p *Parser) parseLogical(next func() ast.Expr, ops map[TokenType]ast.Operator) ast.Expr {
	start := p.curToken.Pos
	left := next()
	if left == nil {
		return nil
	}
	for {
		op, ok := ops[p.curToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		right := next()
		if right == nil {
			return nil
		}
		left = &ast.Logical{SpanVal: p.spanFrom(start), Left: left, Op: op, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.curToken.Pos
	var op ast.Operator
	switch {
	case p.curTokenIs(TokenBang):
		op = ast.OpBang
	case p.curTokenIs(TokenMinus):
		op = ast.OpMinus
	default:
		return p.parsePrimary()
	}
	p.nextToken()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &ast.Unary{SpanVal: p.spanFrom(start), Op: op, Operand: operand}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.curToken
	span := ast.MakeSpan(tok.Pos, tok.Pos)

	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf("invalid number %q: %v", tok.Literal, err)
			return nil
		}
		return &ast.NumberLiteral{SpanVal: span, Value: v}

	case TokenString:
		p.nextToken()
		return &ast.StringLiteral{SpanVal: span, Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &ast.BoolLiteral{SpanVal: span, Value: tok.Type == TokenTrue}

	case TokenNil:
		p.nextToken()
		return &ast.NilLiteral{SpanVal: span}

	case TokenIdentifier:
		p.nextToken()
		return &ast.Variable{SpanVal: span, Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		inner := p.parseExpression()
		if inner == nil || !p.expect(TokenRParen) {
			return nil
		}
		return &ast.Grouping{SpanVal: p.spanFrom(tok.Pos), Inner: inner}

	case TokenError:
		p.errorf("%s", tok.Literal)
		return nil

	default:
		p.errorf("expected expression, got %s", tok)
		return nil
	}
}

// spanFrom builds a span from start to the end of the last consumed token.
func (p *Parser) spanFrom(start ast.Position) ast.Span {
	return ast.MakeSpan(start, p.prevToken.Pos)
}
