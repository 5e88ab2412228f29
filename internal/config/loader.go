package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForCompile loads configuration for the compile commands
func (l *Loader) LoadForCompile(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(args)
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("compiler_path", DefaultCompilerPath)
	viper.SetDefault("template", DefaultTemplate)
	viper.SetDefault("context", DefaultContext)
	viper.SetDefault("recompile", DefaultRecompile)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("log_level", DefaultLogLevel)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	globalDir := GlobalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range configExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges local configuration from the project directory
func (l *Loader) loadLocalConfig(args []string) {
	if len(args) > 0 {
		absFirstFile, err := filepath.Abs(args[0])
		if err != nil {
			return // silently ignore, config.Load() will handle validation
		}

		dir := filepath.Dir(absFirstFile)
		localPath := FindLocalConfig(dir)
		if localPath != "" {
			viper.SetConfigFile(localPath)
			_ = viper.MergeInConfig()
		}
	}
}

// bindEnv maps SCC_* environment variables onto config keys
func (l *Loader) bindEnv() {
	_ = viper.BindEnv("cache_dir", "SCC_CACHE_DIR")
	_ = viper.BindEnv("compiler_path", "SCC_COMPILER")
	_ = viper.BindEnv("log_level", "SCC_LOG")
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	bind := func(key, flag string) {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}

	bind("cache_dir", "cache-dir")
	bind("recompile", "recompile")
	bind("verbose", "verbose")
	bind("classpath", "classpath")
	bind("template", "template")
	bind("context", "context")
	bind("compiler_path", "compiler")
}
