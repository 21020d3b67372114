// Package manifest handles loxvm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "loxvm.toml"

// Manifest represents a loxvm.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	VM      VMConfig    `toml:"vm"`
	Cache   CacheConfig `toml:"cache"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the loxvm.toml file (set at load time).
	// Empty for the defaults.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Source configures the program run when no file is given.
type Source struct {
	Entry string `toml:"entry"`
}

// VMConfig configures execution.
type VMConfig struct {
	MaxDepth int  `toml:"max-depth"`
	Trace    bool `toml:"trace"`
}

// CacheConfig configures the compile cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no loxvm.toml exists.
func Default() *Manifest {
	return &Manifest{
		VM:    VMConfig{MaxDepth: 1024},
		Cache: CacheConfig{Enabled: true, Path: filepath.Join(".loxvm", "cache.db")},
	}
}

// Load parses the loxvm.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file at any path. Keys absent from the
// file keep their default values; unknown keys are an error. Relative paths
// in the file resolve against the file's directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if m.VM.MaxDepth <= 0 {
		return nil, fmt.Errorf("%s: vm.max-depth must be positive, got %d", path, m.VM.MaxDepth)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a loxvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes p absolute relative to the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// CachePath returns the compile cache database path.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// LogFilePath returns the log file path, or "" for stderr.
func (m *Manifest) LogFilePath() string {
	return m.resolve(m.Log.File)
}

// EntryPath returns the path of the entry program, or "" if none is set.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Source.Entry)
}
