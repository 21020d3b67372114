package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/loxvm/manifest"
	"github.com/chazu/loxvm/pkg/bytecode"
	"github.com/chazu/loxvm/pkg/image"
	"github.com/chazu/loxvm/pkg/parser"
	"github.com/chazu/loxvm/pkg/store"
)

// loadSource picks the program text: inline -e source first, then a file
// argument, then the configured entry, then stdin.
func loadSource(cfg *manifest.Manifest, expr string, args []string, stdin io.Reader) (string, string, error) {
	switch {
	case expr != "":
		return expr, "<expr>", nil
	case len(args) > 1:
		return "", "", fmt.Errorf("expected at most one source file, got %d", len(args))
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	case cfg.EntryPath() != "":
		path := cfg.EntryPath()
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", err
		}
		return string(data), path, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), "<stdin>", nil
}

// compileSource parses and compiles source into an image stamped with its
// hash.
func compileSource(source string) (*image.Image, error) {
	stmts, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	chunk, err := bytecode.Compile(stmts)
	if err != nil {
		return nil, err
	}
	return image.FromChunk(chunk, image.HashSource(source)), nil
}

// compileCached looks the source up in the compilation cache and compiles
// on a miss. Cache failures are logged and never fail the run.
func compileCached(cfg *manifest.Manifest, source string) (*image.Image, error) {
	if !cfg.Cache.Enabled {
		return compileSource(source)
	}

	s, err := store.Open(cfg.CachePath())
	if err != nil {
		cliLog.Warningf("cache unavailable: %s", err.Error())
		return compileSource(source)
	}
	defer s.Close()

	hash := image.HashSource(source)
	img, err := s.Get(hash)
	switch {
	case err == nil:
		cliLog.Infof("cache hit for %s", hash[:12])
		return img, nil
	case errors.Is(err, store.ErrStale):
		cliLog.Infof("recompiling stale cache entry %s", hash[:12])
	case !errors.Is(err, store.ErrNotFound):
		cliLog.Warningf("cache lookup failed: %s", err.Error())
	}

	img, err = compileSource(source)
	if err != nil {
		return nil, err
	}
	if err := s.Put(img); err != nil {
		cliLog.Warningf("cache store failed: %s", err.Error())
	}
	return img, nil
}

// formatStack renders the VM's live slots as "[name=Value, ...]".
func formatStack(vm *bytecode.VM) string {
	stack := vm.Stack()
	parts := make([]string, len(stack))
	for i, slot := range stack {
		parts[i] = vm.SlotName(slot) + "=" + slot.Value.GoString()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
