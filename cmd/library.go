package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/scc/internal/script"
)

func newLibraryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "library <file...>",
		Short: "Compile a library",
		Long: `Compile Kotlin sources into a cached library and print its directory.
The order of the files is part of the cache key.`,
		Args:         cobra.MinimumNArgs(1),
		RunE:         runLibrary,
		SilenceUsage: true,
	}
}

func runLibrary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	cc, err := newCachingCompiler(cmd, cfg)
	if err != nil {
		return err
	}

	files := make([]string, 0, len(args))
	for _, arg := range args {
		absFile, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path: %w", err)
		}

		files = append(files, absFile)
	}

	dir, err := cc.CompileLibrary(commandContext(cmd), files, script.NewClassPath(cfg.ClassPath...))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
