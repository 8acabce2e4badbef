package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dexjit/internal/backend"
	"dexjit/internal/jit"
	"dexjit/internal/meta"
	"dexjit/internal/trace"
)

// session is everything a compiling command needs: settings, the loaded
// image and a compiler wired to the tracer in the command context.
type session struct {
	cfg      jit.Config
	cfgPath  string
	image    *meta.Image
	compiler *jit.Compiler
	native   *backend.Native
	tracer   trace.Tracer
	timings  bool
	cleanup  func()
}

// openSession loads the configuration and image and constructs the
// compiler. The caller must call s.close.
func openSession(cmd *cobra.Command, imagePath string) (*session, error) {
	if err := applyColorMode(cmd); err != nil {
		return nil, err
	}
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}

	img, err := meta.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}

	forcePrint := cfg.Print || (cfg.Filter.Include && len(cfg.Filter.Methods) > 0)
	tracer, cleanup, err := setupTracing(cmd, forcePrint)
	if err != nil {
		return nil, err
	}

	native := backend.NewNative(backend.NewCodeCache(cfg.CodeCacheBase, cfg.CodeCacheBytes), cfg.MaxTranslationBytes)
	abort := func(err error) {
		// the ring holds the events leading up to the violation
		if ring := ringOf(tracer); ring != nil {
			_ = ring.Dump(os.Stderr, trace.FormatText)
		}
		cleanup()
		jit.DefaultAbort(err)
	}
	c, err := jit.NewCompiler(cfg, native, jit.WithTracer(tracer), jit.WithAbort(abort))
	if err != nil {
		cleanup()
		return nil, err
	}
	return &session{
		cfg:      cfg,
		cfgPath:  cfgPath,
		image:    img,
		compiler: c,
		native:   native,
		tracer:   tracer,
		timings:  timings,
		cleanup:  cleanup,
	}, nil
}

func (s *session) close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// loadConfig reads --config or the nearest dexjit.toml, then applies flag
// overrides.
func loadConfig(cmd *cobra.Command) (jit.Config, string, error) {
	pf := cmd.Root().PersistentFlags()
	path, err := pf.GetString("config")
	if err != nil {
		return jit.Config{}, "", fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		found, ok, findErr := jit.FindConfig(".")
		if findErr != nil {
			return jit.Config{}, "", findErr
		}
		if ok {
			path = found
		}
	}

	cfg := jit.DefaultConfig()
	if path != "" {
		cfg, err = jit.LoadConfig(path)
		if err != nil {
			return jit.Config{}, "", err
		}
	}

	if pf.Changed("print") {
		if cfg.Print, err = pf.GetBool("print"); err != nil {
			return jit.Config{}, "", err
		}
	}
	if pf.Changed("max-insns") {
		if cfg.MaxTraceInsns, err = pf.GetInt("max-insns"); err != nil {
			return jit.Config{}, "", err
		}
	}
	if f := cmd.Flags().Lookup("jobs"); f != nil && f.Changed {
		if cfg.Jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
			return jit.Config{}, "", err
		}
	}
	if err := cfg.Validate(); err != nil {
		return jit.Config{}, "", err
	}
	return cfg, path, nil
}
