package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/scc/internal/config"
	"github.com/Norgate-AV/scc/internal/progress"
	"github.com/Norgate-AV/scc/internal/script"
	"github.com/Norgate-AV/scc/internal/scriptcache"
)

// stdinScript is the logical name of a script read from standard input
const stdinScript = "stdin.kts"

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <script...>",
		Short: "Compile scripts",
		Long: `Compile one or more Kotlin scripts through the cache.
Scripts are compiled concurrently. Use "-" to read a script from standard input.`,
		Args:         cobra.MinimumNArgs(1),
		RunE:         runCompile,
		SilenceUsage: true,
	}
}

func newCachingCompiler(cmd *cobra.Command, cfg *config.Config) (*scriptcache.CachingCompiler, error) {
	return scriptcache.New(scriptcache.Options{
		CacheDir:  cfg.CacheDir,
		Recompile: cfg.Recompile,
		Compiler:  newCompiler(cfg),
		Progress:  progress.NewConsole(cmd.ErrOrStderr(), cfg.Verbose),
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	cc, err := newCachingCompiler(cmd, cfg)
	if err != nil {
		return err
	}

	requests := make([]script.Request, len(args))
	for i, arg := range args {
		req, err := buildRequest(cfg, arg, cmd.InOrStdin())
		if err != nil {
			return err
		}

		requests[i] = req
	}

	artifacts := make([]script.CompiledArtifact, len(requests))
	g, ctx := errgroup.WithContext(commandContext(cmd))
	for i, req := range requests {
		g.Go(func() error {
			artifact, err := cc.Compile(ctx, req)
			if err != nil {
				return err
			}

			artifacts[i] = artifact
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, artifact := range artifacts {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", artifact.SymbolName, artifact.Location)
	}

	return nil
}

// buildRequest turns a command line argument into a compile request
func buildRequest(cfg *config.Config, arg string, stdin io.Reader) (script.Request, error) {
	req := script.Request{
		Template:      script.TemplateID(cfg.Template),
		Dependencies:  script.NewClassPath(cfg.ClassPath...),
		ParentContext: script.ContextID(cfg.Context),
	}

	if arg == "-" {
		text, err := io.ReadAll(stdin)
		if err != nil {
			return script.Request{}, fmt.Errorf("failed to read script from stdin: %w", err)
		}

		req.Source = script.InlineSource(stdinScript, string(text), 0)
		return req, nil
	}

	absFile, err := filepath.Abs(arg)
	if err != nil {
		return script.Request{}, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	req.Source = script.FileSource(absFile, absFile, 0)
	return req, nil
}
