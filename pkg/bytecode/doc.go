// Package bytecode compiles statement trees into a compact prefix-order byte
// encoding and executes that encoding on a recursive stack machine.
//
// The format is designed for:
//   - Compact representation (one opcode byte, operands only where needed)
//   - Direct evaluation (operators precede their operands, so the VM recovers
//     operand values by recursively dispatching on the following bytes)
//   - Easy serialization (the buffer plus the constant pool is a complete unit)
//
// # Architecture Overview
//
//   - Value: a tagged runtime value (number, text, boolean or nil) with
//     permissive operators that fall back to nil for unsupported pairings.
//
//   - Opcodes: 24 instructions with stable byte values 0 to 23. Each opcode
//     has a fixed layout: leading operand bytes, sub-expressions, then
//     trailing operand bytes (used by the jumps).
//
//   - Chunk: the compiled unit, an instruction sequence plus a deduplicated
//     constant pool. Operands are separate sequence elements whose encoded
//     width (1, 2, 4 or 8 bytes, little-endian) follows their magnitude.
//
//   - Compiler: lowers pkg/ast trees into a Chunk, computing jump distances
//     from the encoded length of the instructions they skip.
//
//   - VM: walks the encoded buffer with a cursor and a flat stack of variable
//     slots. Slots are identified by the constant-pool index of their name.
//
// # Byte Layout
//
//	CONSTANT       idx:u8
//	LONG_CONSTANT  idx:u16
//	VAR            name:u8
//	ASSIGN         name:u8  <expr>
//	GET            name:u8
//	POP            count:u8
//	JUMP_*         <expr>   delta:u8
//	NEGATE         <expr>
//	binary ops     <expr>   <expr>
//
// Forward jumps add delta to the cursor after the delta byte is read;
// backward jumps subtract it.
//
// # Known Behaviors
//
// Conditionals do not jump over the else-branch, so a taken then-branch
// falls through into it. Loops are lowered body-first and test the
// condition after each pass, so the body always runs at least once. A block
// exit pops every declaration made inside blocks since the previous block
// exit, which includes an enclosing block's declarations when blocks nest.
//
// # Symbolic Form
//
// EncodeSymbols renders a buffer with one printable symbol per opcode, for
// debugging. DecodeSymbols reverses it exactly.
package bytecode
