package jit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"dexjit/internal/backend"
)

// ConfigFileName is looked up from the working directory upwards.
const ConfigFileName = "dexjit.toml"

// DefaultMaxTraceInsns is the initial instruction ceiling of a trace.
const DefaultMaxTraceInsns = 100

// Config controls a Compiler.
type Config struct {
	MaxTraceInsns   int
	Print           bool
	LookupCacheSize int

	Filter FilterConfig

	CodeCacheBase       uint64
	CodeCacheBytes      int
	MaxTranslationBytes int

	Jobs int
}

// FilterConfig selects methods for printing or single-step translation.
type FilterConfig struct {
	Include bool
	Methods []string
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		MaxTraceInsns:       DefaultMaxTraceInsns,
		LookupCacheSize:     512,
		CodeCacheBase:       0x40000000,
		CodeCacheBytes:      backend.DefaultCodeCacheBytes,
		MaxTranslationBytes: backend.DefaultMaxTranslationBytes,
	}
}

type configFile struct {
	JIT     jitSection     `toml:"jit"`
	Filter  filterSection  `toml:"filter"`
	Backend backendSection `toml:"backend"`
	Batch   batchSection   `toml:"batch"`
}

type jitSection struct {
	MaxTraceInsns   int  `toml:"max_trace_insns"`
	Print           bool `toml:"print"`
	LookupCacheSize int  `toml:"lookup_cache_size"`
}

type filterSection struct {
	Include bool     `toml:"include"`
	Methods []string `toml:"methods"`
}

type backendSection struct {
	CodeCacheBase       uint64 `toml:"code_cache_base"`
	CodeCacheBytes      int    `toml:"code_cache_bytes"`
	MaxTranslationBytes int    `toml:"max_translation_bytes"`
}

type batchSection struct {
	Jobs int `toml:"jobs"`
}

// FindConfig walks up from startDir to locate dexjit.toml.
func FindConfig(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadConfig reads path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	var f configFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg := DefaultConfig()
	if md.IsDefined("jit", "max_trace_insns") {
		cfg.MaxTraceInsns = f.JIT.MaxTraceInsns
	}
	cfg.Print = f.JIT.Print
	if md.IsDefined("jit", "lookup_cache_size") {
		cfg.LookupCacheSize = f.JIT.LookupCacheSize
	}
	cfg.Filter = FilterConfig{Include: f.Filter.Include, Methods: f.Filter.Methods}
	if md.IsDefined("backend", "code_cache_base") {
		cfg.CodeCacheBase = f.Backend.CodeCacheBase
	}
	if md.IsDefined("backend", "code_cache_bytes") {
		cfg.CodeCacheBytes = f.Backend.CodeCacheBytes
	}
	if md.IsDefined("backend", "max_translation_bytes") {
		cfg.MaxTranslationBytes = f.Backend.MaxTranslationBytes
	}
	cfg.Jobs = f.Batch.Jobs

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the compiler cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxTraceInsns <= 0 {
		errs = append(errs, fmt.Errorf("[jit].max_trace_insns must be positive, got %d", c.MaxTraceInsns))
	}
	if c.LookupCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("[jit].lookup_cache_size must be positive, got %d", c.LookupCacheSize))
	}
	if c.CodeCacheBytes <= 0 {
		errs = append(errs, fmt.Errorf("[backend].code_cache_bytes must be positive, got %d", c.CodeCacheBytes))
	}
	if c.MaxTranslationBytes <= backend.HeaderSize {
		errs = append(errs, fmt.Errorf("[backend].max_translation_bytes must exceed the %d byte header, got %d", backend.HeaderSize, c.MaxTranslationBytes))
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("[batch].jobs must not be negative, got %d", c.Jobs))
	}
	return errors.Join(errs...)
}
