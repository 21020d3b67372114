// loxvm CLI - compiles Lox-style source to bytecode and runs it
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"github.com/chazu/loxvm/manifest"
	"github.com/chazu/loxvm/pkg/bytecode"
	"github.com/chazu/loxvm/pkg/image"
)

var cliLog = commonlog.GetLogger("loxvm.cli")

type options struct {
	expr        string
	configPath  string
	verbosity   int
	trace       bool
	disasm      bool
	symbols     bool
	output      string
	imagePath   string
	noCache     bool
	interactive bool
}

func main() {
	var opts options
	flag.StringVar(&opts.expr, "e", "", "Compile and run the given source text")
	flag.StringVar(&opts.configPath, "config", "", "Path to a loxvm.toml (default: search upward from the working directory)")
	flag.IntVar(&opts.verbosity, "v", 0, "Log verbosity (1 info, 2 debug)")
	flag.BoolVar(&opts.trace, "trace", false, "Log every executed instruction")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print a disassembly listing before running")
	flag.BoolVar(&opts.symbols, "symbols", false, "Print the emoji form of the bytecode before running")
	flag.StringVar(&opts.output, "o", "", "Write the compiled image to a file")
	flag.StringVar(&opts.imagePath, "image", "", "Run a previously written image instead of source")
	flag.BoolVar(&opts.noCache, "no-cache", false, "Bypass the compilation cache")
	flag.BoolVar(&opts.interactive, "i", false, "Start interactive REPL (default when stdin is a terminal and no program is given)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loxvm [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a program to bytecode and runs it. Without a file or -e the\n")
		fmt.Fprintf(os.Stderr, "entry from loxvm.toml is used, then standard input.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loxvm prog.lox                  # Compile and run a file\n")
		fmt.Fprintf(os.Stderr, "  loxvm -e '1 + 2 * 3;'           # Run inline source\n")
		fmt.Fprintf(os.Stderr, "  loxvm -disasm -symbols prog.lox # Show the bytecode first\n")
		fmt.Fprintf(os.Stderr, "  loxvm -o prog.lxb prog.lox      # Save an image\n")
		fmt.Fprintf(os.Stderr, "  loxvm -image prog.lxb           # Run a saved image\n")
		fmt.Fprintf(os.Stderr, "  loxvm -i                        # Start REPL\n")
	}
	flag.Parse()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, &opts)
	configureLogging(cfg)

	// A bare invocation on a terminal has no program to read
	if !opts.interactive && opts.expr == "" && opts.imagePath == "" && flag.NArg() == 0 &&
		cfg.EntryPath() == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		opts.interactive = true
	}

	if opts.interactive {
		runREPL(cfg, os.Stdin, os.Stdout)
		return
	}

	if err := run(cfg, &opts, flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads an explicit config file, or searches for loxvm.toml and
// falls back to defaults when none exists.
func loadConfig(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// applyFlags layers command-line overrides over the loaded configuration.
func applyFlags(cfg *manifest.Manifest, opts *options) {
	if opts.verbosity != 0 {
		cfg.Log.Verbosity = opts.verbosity
	}
	if opts.trace {
		cfg.VM.Trace = true
	}
	if opts.noCache {
		cfg.Cache.Enabled = false
	}
	// Trace lines are logged at debug level
	if cfg.VM.Trace && cfg.Log.Verbosity < 2 {
		cfg.Log.Verbosity = 2
	}
}

func configureLogging(cfg *manifest.Manifest) {
	var path *string
	if p := cfg.LogFilePath(); p != "" {
		path = &p
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

// run compiles (or loads) a program, prints any requested listings and
// executes it, writing the result and final stack to out.
func run(cfg *manifest.Manifest, opts *options, args []string, stdin io.Reader, out io.Writer) error {
	var img *image.Image
	if opts.imagePath != "" {
		loaded, err := image.ReadFile(opts.imagePath)
		if err != nil {
			return err
		}
		img = loaded
	} else {
		source, name, err := loadSource(cfg, opts.expr, args, stdin)
		if err != nil {
			return err
		}
		cliLog.Infof("compiling %s (%d bytes)", name, len(source))
		img, err = compileCached(cfg, source)
		if err != nil {
			return err
		}
	}

	if opts.output != "" {
		if err := image.WriteFile(opts.output, img); err != nil {
			return err
		}
		if info, err := os.Stat(opts.output); err == nil {
			cliLog.Infof("wrote image %s (%s)", opts.output, humanize.Bytes(uint64(info.Size())))
		}
	}
	if opts.disasm {
		fmt.Fprint(out, bytecode.DisassembleCode(img.Code, img.Constants))
	}
	if opts.symbols {
		fmt.Fprintln(out, bytecode.EncodeSymbols(img.Code))
	}

	vm := img.NewVM()
	vm.MaxDepth = cfg.VM.MaxDepth
	vm.Trace = cfg.VM.Trace

	result, err := vm.Run()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result)
	fmt.Fprintf(out, "Stack after run: %s\n", formatStack(vm))
	return nil
}
