// Package scriptcache compiles scripts and libraries through a persistent,
// content-addressed cache.
//
// A request is folded into a cache key; the store hands back the entry for
// that key and runs the compiler only if the entry is absent or invalid.
// An entry for a script looks like:
//
//	<entry>/
//	  output/             compiled classes
//	  script-class-name   top-level symbol produced by the compiler
//	  source/             materialized inline script bodies
//	  cache.properties    version tag, written last
//
// Hits and misses return the same CompiledArtifact.
package scriptcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"github.com/Norgate-AV/scc/internal/cacheerr"
	"github.com/Norgate-AV/scc/internal/cachekey"
	"github.com/Norgate-AV/scc/internal/compiler"
	"github.com/Norgate-AV/scc/internal/progress"
	"github.com/Norgate-AV/scc/internal/script"
	"github.com/Norgate-AV/scc/internal/store"
)

const (
	// OutputDir holds the compiled output of a script entry
	OutputDir = "output"

	// ClassNameFile holds the produced symbol name of a script entry
	ClassNameFile = "script-class-name"

	// SourceDir holds materialized inline script bodies
	SourceDir = "source"

	// CacheVersion is stored with every entry; entries written by another
	// version are rebuilt
	CacheVersion = "3"
)

// Options configures a CachingCompiler
type Options struct {
	// CacheDir is the root of the persistent cache
	CacheDir string

	// Recompile forces every request to be compiled again
	Recompile bool

	// Compiler does the actual compilation work
	Compiler compiler.Compiler

	// Progress is notified around each compilation; defaults to progress.Nop
	Progress progress.Reporter

	// DisableIndex turns off the bbolt entry index
	DisableIndex bool
}

// CachingCompiler compiles requests through the cache
type CachingCompiler struct {
	store    *store.Store
	compiler compiler.Compiler
	progress progress.Reporter
}

// New creates a caching compiler
func New(opts Options) (*CachingCompiler, error) {
	if opts.Compiler == nil {
		return nil, cacheerr.InvalidInput("compiler", "must not be nil")
	}

	storeOpts := []store.Option{store.WithRecompute(opts.Recompile)}
	if opts.DisableIndex {
		storeOpts = append(storeOpts, store.WithoutIndex())
	}

	s, err := store.New(opts.CacheDir, storeOpts...)
	if err != nil {
		return nil, err
	}

	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}

	return &CachingCompiler{store: s, compiler: opts.Compiler, progress: reporter}, nil
}

// Store exposes the underlying store for reporting
func (cc *CachingCompiler) Store() *store.Store { return cc.store }

func properties() store.Properties {
	return store.Properties{"version": CacheVersion}
}

// validScript accepts entries whose class name marker and output survived
func validScript(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, ClassNameFile))
	if err != nil || len(data) == 0 {
		return false
	}

	info, err := os.Stat(filepath.Join(dir, OutputDir))
	return err == nil && info.IsDir()
}

// Compile compiles req, or returns the cached result of an identical request
func (cc *CachingCompiler) Compile(ctx context.Context, req script.Request) (script.CompiledArtifact, error) {
	key, err := cachekey.Derive(req)
	if err != nil {
		return script.CompiledArtifact{}, keyError(req.Label(), err)
	}

	label := req.Label()
	logger := log.WithFields(log.Fields{"script": label, "key": key.Hash()[:12]})
	logger.Debugf("key: %s", key.Describe())

	h, err := progress.With(cc.progress, progress.CategoryCompile, label, func() (*store.Handle, error) {
		return cc.store.Open(key, properties(), validScript, func(dir string) error {
			return cc.compileScript(ctx, req, dir)
		})
	})
	if err != nil {
		return script.CompiledArtifact{}, withContext(label, err)
	}
	defer h.Close()

	name, err := os.ReadFile(filepath.Join(h.BaseDir(), ClassNameFile))
	if err != nil {
		return script.CompiledArtifact{}, withContext(label, cacheerr.CacheIO("read", filepath.Join(h.BaseDir(), ClassNameFile), err))
	}

	return script.CompiledArtifact{
		Location:   filepath.Join(h.BaseDir(), OutputDir),
		SymbolName: string(name),
		Request:    req,
	}, nil
}

// compileScript is the initializer of a script entry
func (cc *CachingCompiler) compileScript(ctx context.Context, req script.Request, dir string) error {
	sourceFile, err := req.Source.Materialize(filepath.Join(dir, SourceDir))
	if err != nil {
		return cacheerr.CacheIO("materialize", req.Source.Path(), err)
	}

	collector := &compiler.Collector{}
	name, err := cc.compiler.Compile(ctx, compiler.ScriptSpec{
		OutputDir:     filepath.Join(dir, OutputDir),
		SourceFile:    sourceFile,
		LogicalPath:   req.Source.Path(),
		LineOffset:    req.Source.LineOffset(),
		Template:      req.Template,
		ExtraSources:  req.ExtraSources,
		Dependencies:  req.Dependencies,
		ParentContext: req.ParentContext,
		Diagnostics:   collector,
	})
	if err != nil {
		return compileFailure(req.Label(), collector, err)
	}

	if name == "" {
		return compileFailure(req.Label(), collector, fmt.Errorf("compiler produced no symbol name"))
	}

	// the output directory is part of the entry contract even when empty
	if err := os.MkdirAll(filepath.Join(dir, OutputDir), 0o755); err != nil {
		return cacheerr.CacheIO("create", filepath.Join(dir, OutputDir), err)
	}

	marker := filepath.Join(dir, ClassNameFile)
	return cacheerr.CacheIO("write", marker, os.WriteFile(marker, []byte(name), 0o644))
}

// CompileLibrary compiles sourceFiles against deps and returns the entry
// directory holding the output. Source order is part of the cache key.
func (cc *CachingCompiler) CompileLibrary(ctx context.Context, sourceFiles []string, deps script.ClassPath) (string, error) {
	label := fmt.Sprintf("library (%d files)", len(sourceFiles))

	key, err := cachekey.DeriveLibrary(sourceFiles, deps)
	if err != nil {
		return "", keyError(label, err)
	}

	h, err := progress.With(cc.progress, progress.CategoryCompile, label, func() (*store.Handle, error) {
		return cc.store.Open(key, properties(), nil, func(dir string) error {
			collector := &compiler.Collector{}
			err := cc.compiler.CompileLibrary(ctx, compiler.LibrarySpec{
				OutputDir:    dir,
				SourceFiles:  sourceFiles,
				Dependencies: deps,
				Diagnostics:  collector,
			})
			if err != nil {
				return compileFailure(label, collector, err)
			}

			return nil
		})
	})
	if err != nil {
		return "", withContext(label, err)
	}
	defer h.Close()

	return h.BaseDir(), nil
}

// keyError leaves invalid input untouched and adds context to anything else
func keyError(label string, err error) error {
	if cacheerr.IsInvalidInput(err) {
		return err
	}

	return fmt.Errorf("failed to derive cache key for %s: %w", label, err)
}

// compileFailure attaches the description and collected diagnostics
func compileFailure(label string, collector *compiler.Collector, err error) error {
	if cacheerr.IsCacheIO(err) {
		return err
	}

	var failed *cacheerr.CompilationFailedError
	if errors.As(err, &failed) {
		if failed.Description == "" {
			failed.Description = label
		}

		if len(failed.Diagnostics) == 0 {
			failed.Diagnostics = collector.Diagnostics()
		}

		return err
	}

	return &cacheerr.CompilationFailedError{
		Description: label,
		Diagnostics: collector.Diagnostics(),
		Err:         err,
	}
}

// withContext names the request on failures. Compilation failures already
// carry their description and invalid input is surfaced unmodified.
func withContext(label string, err error) error {
	if cacheerr.IsInvalidInput(err) {
		return err
	}

	var failed *cacheerr.CompilationFailedError
	if errors.As(err, &failed) {
		if failed.Description == "" {
			failed.Description = label
		}

		return err
	}

	return fmt.Errorf("compiling %s: %w", label, err)
}
