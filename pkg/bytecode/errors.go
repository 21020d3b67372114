package bytecode

import "fmt"

// ErrorKind classifies compile and execution failures.
type ErrorKind uint8

const (
	// KindUnresolvedVariable: Assign or Get named a slot that is not live.
	KindUnresolvedVariable ErrorKind = iota + 1
	// KindInvalidOpcode: a byte outside the opcode table was dispatched.
	KindInvalidOpcode
	// KindUnexpectedEnd: the cursor ran past the buffer while reading.
	KindUnexpectedEnd
	// KindNormalReturn: a Return opcode was dispatched. Not a failure.
	KindNormalReturn
	// KindStackUnderflow: Pop asked for more slots than are live.
	KindStackUnderflow
	// KindJumpOutOfRange: a jump moved the cursor outside the buffer.
	KindJumpOutOfRange
	// KindConstantOutOfRange: a constant index is not in the pool.
	KindConstantOutOfRange
	// KindDepthExceeded: sub-expression nesting exceeded the VM limit.
	KindDepthExceeded
	// KindOperandOverflow: an operand does not fit the width its opcode reads.
	KindOperandOverflow
)

var errorKindNames = map[ErrorKind]string{
	KindUnresolvedVariable: "unresolved variable",
	KindInvalidOpcode:      "invalid opcode",
	KindUnexpectedEnd:      "unexpected end of bytecode",
	KindNormalReturn:       "return",
	KindStackUnderflow:     "stack underflow",
	KindJumpOutOfRange:     "jump out of range",
	KindConstantOutOfRange: "constant out of range",
	KindDepthExceeded:      "expression depth exceeded",
	KindOperandOverflow:    "operand overflow",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is returned by the compiler and the VM. Offset is the byte offset
// of the failing instruction, or -1 when not applicable.
type Error struct {
	Kind   ErrorKind
	Offset int
	Detail string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrInvalidOpcode)
// works regardless of offset and detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnresolvedVariable = &Error{Kind: KindUnresolvedVariable, Offset: -1}
	ErrInvalidOpcode      = &Error{Kind: KindInvalidOpcode, Offset: -1}
	ErrUnexpectedEnd      = &Error{Kind: KindUnexpectedEnd, Offset: -1}
	ErrNormalReturn       = &Error{Kind: KindNormalReturn, Offset: -1}
	ErrStackUnderflow     = &Error{Kind: KindStackUnderflow, Offset: -1}
	ErrJumpOutOfRange     = &Error{Kind: KindJumpOutOfRange, Offset: -1}
	ErrConstantOutOfRange = &Error{Kind: KindConstantOutOfRange, Offset: -1}
	ErrDepthExceeded      = &Error{Kind: KindDepthExceeded, Offset: -1}
	ErrOperandOverflow    = &Error{Kind: KindOperandOverflow, Offset: -1}
)

func newError(kind ErrorKind, offset int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}
