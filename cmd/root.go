package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/scc/internal/compiler"
	"github.com/Norgate-AV/scc/internal/config"
	logger "github.com/Norgate-AV/scc/internal/log"
	"github.com/Norgate-AV/scc/internal/version"
)

// newCompiler builds the compiler the cache delegates to
var newCompiler = func(cfg *config.Config) compiler.Compiler {
	cb := compiler.NewCommandBuilder(cfg.CompilerPath, cfg.CompilerArgs...)
	if cfg.Verbose {
		cb.Stdout = os.Stderr
	}

	return cb
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "scc",
		Short:        "Script compilation cache",
		Long:         `Compile Kotlin scripts and libraries through a persistent, content-addressed cache`,
		SilenceUsage: true,
		Version:      fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime),
	}

	rootCmd.PersistentFlags().String("cache-dir", "", "Cache directory (default: user cache dir)")
	rootCmd.PersistentFlags().Bool("recompile", false, "Ignore cached entries and compile again")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringSliceP("classpath", "c", []string{}, "Dependencies placed on the compile classpath")
	rootCmd.PersistentFlags().StringP("template", "t", "", "Script template identity")
	rootCmd.PersistentFlags().String("context", "", "Parent context identity")
	rootCmd.PersistentFlags().String("compiler", "", "Path to the Kotlin compiler")

	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newLibraryCmd())
	rootCmd.AddCommand(newCacheCmd())

	return rootCmd
}

func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration for cmd and sets up logging
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadForCompile(cmd, args)
	if err != nil {
		return nil, err
	}

	logger.InitLogger(cfg.LogLevel)
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	log.WithFields(log.Fields{
		"cache":    cfg.CacheDir,
		"compiler": cfg.CompilerPath,
	}).Debug("configuration loaded")

	return cfg, nil
}
