package bytecode

import (
	"errors"
	"strconv"

	"github.com/tliron/commonlog"
)

var vmLog = commonlog.GetLogger("loxvm.vm")

// DefaultMaxDepth bounds sub-expression nesting during dispatch. Binary
// operators are left associative and encoded in prefix order, so a flat
// chain like 1 + 1 + ... + 1 nests one level per operator and a chain of
// more than about a thousand terms needs a larger MaxDepth.
const DefaultMaxDepth = 1024

// Slot is a runtime variable binding. ID is the constant-pool index of the
// variable's name.
type Slot struct {
	ID    int
	Value Value
}

// VM executes encoded bytecode by recursive prefix-order dispatch.
// All execution state belongs to the instance; separate VMs are independent.
type VM struct {
	code      []byte
	constants []Value
	ip        int
	slots     []Slot
	depth     int

	// MaxDepth bounds recursive dispatch, counting every operator in a
	// left-associative chain as one level. Zero means DefaultMaxDepth.
	MaxDepth int

	// Trace logs every dispatched opcode at debug level
	Trace bool
}

// NewVM creates a VM over an encoded buffer and the constant pool it
// indexes into.
func NewVM(code []byte, constants []Value) *VM {
	return &VM{
		code:      code,
		constants: constants,
		slots:     make([]Slot, 0, 16),
		MaxDepth:  DefaultMaxDepth,
	}
}

// NewVMForChunk encodes a chunk and creates a VM for it.
func NewVMForChunk(c *Chunk) *VM {
	return NewVM(c.Encode(), c.Constants)
}

// Run dispatches top-level instructions until a Return opcode or the end
// of the buffer, and returns the value of the last completed top-level
// instruction. The first error halts the run.
func (vm *VM) Run() (Value, error) {
	last := Nil()
	for vm.ip < len(vm.code) {
		v, err := vm.Step()
		if errors.Is(err, ErrNormalReturn) {
			vmLog.Debugf("return at offset %d", vm.ip-1)
			return last, nil
		}
		if err != nil {
			return last, err
		}
		last = v
	}
	return last, nil
}

// Step dispatches one top-level instruction, including every
// sub-expression it consumes. A Return opcode yields ErrNormalReturn.
func (vm *VM) Step() (Value, error) {
	vm.depth = 0
	return vm.dispatch()
}

// Done reports whether the cursor has reached the end of the buffer.
func (vm *VM) Done() bool {
	return vm.ip >= len(vm.code)
}

// IP returns the current cursor offset.
func (vm *VM) IP() int {
	return vm.ip
}

// Stack returns a copy of the live slots, oldest first.
func (vm *VM) Stack() []Slot {
	out := make([]Slot, len(vm.slots))
	copy(out, vm.slots)
	return out
}

// Lookup returns the value of the live slot named name, resolved the same
// way Get resolves it.
func (vm *VM) Lookup(name string) (Value, bool) {
	for id, c := range vm.constants {
		if c.Kind != KindText || c.Str != name {
			continue
		}
		if i := vm.findSlot(id); i >= 0 {
			return vm.slots[i].Value, true
		}
	}
	return Nil(), false
}

// SlotName returns the variable name of a slot, or "" if its id does not
// name a text constant.
func (vm *VM) SlotName(s Slot) string {
	if s.ID < 0 || s.ID >= len(vm.constants) || vm.constants[s.ID].Kind != KindText {
		return ""
	}
	return vm.constants[s.ID].Str
}

// Extend swaps in a longer buffer and pool whose prefixes are the current
// ones, keeping the cursor and slots. Run then continues with the new code.
func (vm *VM) Extend(code []byte, constants []Value) {
	vm.code = code
	vm.constants = constants
}

// Discard moves the cursor past any unexecuted code, keeping the slots.
func (vm *VM) Discard() {
	vm.ip = len(vm.code)
}

// Reset rewinds the cursor and clears the slot stack.
func (vm *VM) Reset() {
	vm.ip = 0
	vm.depth = 0
	vm.slots = vm.slots[:0]
}

func (vm *VM) dispatch() (Value, error) {
	limit := vm.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if vm.depth >= limit {
		return Nil(), newError(KindDepthExceeded, vm.ip, "nesting deeper than %d", limit)
	}
	vm.depth++
	defer func() { vm.depth-- }()

	start := vm.ip
	b, err := vm.readByte()
	if err != nil {
		return Nil(), err
	}
	op := Opcode(b)
	if !op.Valid() {
		return Nil(), newError(KindInvalidOpcode, start, "byte 0x%02X", b)
	}

	if vm.Trace {
		vmLog.Debugf("[%04x] %-18s depth=%d slots=%d", start, op, vm.depth, len(vm.slots))
	}

	switch op {
	case OpReturn:
		return Nil(), newError(KindNormalReturn, start, "")

	case OpConstant, OpLongConstant:
		idx, err := vm.readOperand(GetOpcodeInfo(op).Operands)
		if err != nil {
			return Nil(), err
		}
		if idx >= uint64(len(vm.constants)) {
			return Nil(), newError(KindConstantOutOfRange, start, "index %d, pool has %d", idx, len(vm.constants))
		}
		return vm.constants[idx], nil

	case OpAdd, OpSubtract, OpMultiply, OpDivide,
		OpAnd, OpOr,
		OpEquals, OpNotEquals,
		OpGreater, OpGreaterEqual, OpLesser, OpLesserEqual:
		left, err := vm.dispatch()
		if err != nil {
			return Nil(), err
		}
		right, err := vm.dispatch()
		if err != nil {
			return Nil(), err
		}
		return combine(op, left, right), nil

	case OpNegate:
		v, err := vm.dispatch()
		if err != nil {
			return Nil(), err
		}
		return Negate(v), nil

	case OpVar:
		id, err := vm.readByte()
		if err != nil {
			return Nil(), err
		}
		vm.slots = append(vm.slots, Slot{ID: int(id)})
		return Nil(), nil

	case OpAssign:
		id, err := vm.readByte()
		if err != nil {
			return Nil(), err
		}
		v, err := vm.dispatch()
		if err != nil {
			return Nil(), err
		}
		i := vm.findSlot(int(id))
		if i < 0 {
			return Nil(), newError(KindUnresolvedVariable, start, "%s", vm.describeName(int(id)))
		}
		vm.slots[i].Value = v
		return Nil(), nil

	case OpGet:
		id, err := vm.readByte()
		if err != nil {
			return Nil(), err
		}
		i := vm.findSlot(int(id))
		if i < 0 {
			return Nil(), newError(KindUnresolvedVariable, start, "%s", vm.describeName(int(id)))
		}
		return vm.slots[i].Value, nil

	case OpPop:
		n, err := vm.readByte()
		if err != nil {
			return Nil(), err
		}
		if int(n) > len(vm.slots) {
			return Nil(), newError(KindStackUnderflow, start, "pop %d of %d slots", n, len(vm.slots))
		}
		vm.slots = vm.slots[:len(vm.slots)-int(n)]
		return Nil(), nil

	case OpJumpBackIfTrue, OpJumpBackIfFalse, OpJumpIfTrue, OpJumpIfFalse:
		cond, err := vm.dispatch()
		if err != nil {
			return Nil(), err
		}
		delta, err := vm.readByte()
		if err != nil {
			return Nil(), err
		}
		if Truthy(cond) != op.JumpsWhen() {
			return Nil(), nil
		}
		target := vm.ip + int(delta)
		if op.IsBackwardJump() {
			target = vm.ip - int(delta)
		}
		if target < 0 || target > len(vm.code) {
			return Nil(), newError(KindJumpOutOfRange, start, "target %d outside [0, %d]", target, len(vm.code))
		}
		vm.ip = target
		return Nil(), nil
	}

	return Nil(), newError(KindInvalidOpcode, start, "unhandled %s", op)
}

// combine applies a two-operand opcode to its evaluated operands.
func combine(op Opcode, left, right Value) Value {
	switch op {
	case OpAdd:
		return Add(left, right)
	case OpSubtract:
		return Subtract(left, right)
	case OpMultiply:
		return Multiply(left, right)
	case OpDivide:
		return Divide(left, right)
	case OpAnd:
		return Bool(Truthy(left) && Truthy(right))
	case OpOr:
		return Bool(Truthy(left) || Truthy(right))
	case OpEquals:
		return Bool(Equal(left, right))
	case OpNotEquals:
		return Bool(!Equal(left, right))
	}

	cmp, ok := Compare(left, right)
	if !ok {
		return Bool(false)
	}
	switch op {
	case OpGreater:
		return Bool(cmp > 0)
	case OpGreaterEqual:
		return Bool(cmp >= 0)
	case OpLesser:
		return Bool(cmp < 0)
	case OpLesserEqual:
		return Bool(cmp <= 0)
	}
	return Nil()
}

// findSlot scans the live slots for id, oldest first. Redeclaring a name
// does not shadow the earlier slot.
func (vm *VM) findSlot(id int) int {
	for i, s := range vm.slots {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (vm *VM) describeName(id int) string {
	if name := vm.SlotName(Slot{ID: id}); name != "" {
		return name
	}
	return "#" + strconv.Itoa(id)
}

// Bytecode reading helpers

func (vm *VM) readByte() (byte, error) {
	if vm.ip >= len(vm.code) {
		return 0, newError(KindUnexpectedEnd, vm.ip, "reading 1 byte")
	}
	b := vm.code[vm.ip]
	vm.ip++
	return b, nil
}

func (vm *VM) readOperand(width int) (uint64, error) {
	if vm.ip+width > len(vm.code) {
		return 0, newError(KindUnexpectedEnd, vm.ip, "reading %d bytes", width)
	}
	v, err := DecodeOperand(vm.code[vm.ip:], width)
	if err != nil {
		return 0, err
	}
	vm.ip += width
	return v, nil
}
