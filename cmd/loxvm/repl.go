package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/loxvm/manifest"
	"github.com/chazu/loxvm/pkg/bytecode"
	"github.com/chazu/loxvm/pkg/parser"
)

// session feeds successive inputs through one compiler and one VM, so
// variables declared on earlier lines stay visible.
type session struct {
	comp *bytecode.Compiler
	vm   *bytecode.VM
}

func newSession(cfg *manifest.Manifest) *session {
	vm := bytecode.NewVM(nil, nil)
	vm.MaxDepth = cfg.VM.MaxDepth
	vm.Trace = cfg.VM.Trace
	return &session{comp: bytecode.NewCompiler(), vm: vm}
}

// eval compiles input onto the session chunk and runs the new code.
func (s *session) eval(input string) (bytecode.Value, error) {
	stmts, err := parser.Parse(input)
	if err != nil {
		return bytecode.Nil(), err
	}

	chunk := s.comp.Chunk()
	var ops []bytecode.Instruction
	for _, stmt := range stmts {
		stmtOps, err := s.comp.CompileStatement(stmt)
		if err != nil {
			return bytecode.Nil(), err
		}
		ops = append(ops, stmtOps...)
	}
	chunk.Emit(ops...)

	s.vm.Extend(chunk.Encode(), chunk.Constants)
	v, err := s.vm.Run()
	if err != nil {
		// Leave the failed remainder behind so the next input starts clean
		s.vm.Discard()
	}
	return v, err
}

func runREPL(cfg *manifest.Manifest, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "loxvm REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Fprintln(out)

	s := newSession(cfg)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, ">> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if strings.HasPrefix(line, ":") {
			if !s.command(line, out) {
				break
			}
			continue
		}

		v, err := s.eval(line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "=> %s\n", v)
	}
	fmt.Fprintln(out)
}

// command handles a ':' directive. It returns false to end the session.
func (s *session) command(line string, out io.Writer) bool {
	switch strings.Fields(line)[0] {
	case ":help":
		fmt.Fprintln(out, "  :stack    show live variables")
		fmt.Fprintln(out, "  :disasm   disassemble everything compiled so far")
		fmt.Fprintln(out, "  :symbols  show the emoji form of the bytecode")
		fmt.Fprintln(out, "  :quit     leave the REPL")
	case ":stack":
		fmt.Fprintln(out, formatStack(s.vm))
	case ":disasm":
		fmt.Fprint(out, s.comp.Chunk().Disassemble())
	case ":symbols":
		fmt.Fprintln(out, bytecode.EncodeSymbols(s.comp.Chunk().Encode()))
	case ":quit":
		return false
	default:
		fmt.Fprintf(out, "Unknown command %s (try :help)\n", line)
	}
	return true
}
