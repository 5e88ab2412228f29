package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultCompilerPath = "kotlinc"
	DefaultTemplate     = "kotlin.script.templates.standard.ScriptTemplateWithArgs"
	DefaultContext      = "default"
	DefaultRecompile    = false
	DefaultVerbose      = false
	DefaultLogLevel     = "error"

	appName = "scc"
)

// Holds the configuration options for scc
type Config struct {
	// Root directory of the compilation cache
	CacheDir string

	// Path to the Kotlin compiler
	CompilerPath string
	// Extra arguments passed to every compiler invocation
	CompilerArgs []string

	// Script template compiled against
	Template string

	// Identity of the parent execution context
	Context string

	// Dependencies placed on the compile classpath
	ClassPath []string

	// Force recompilation of cached entries
	Recompile bool

	// Enable verbose output
	Verbose bool

	// apex/log level name
	LogLevel string
}

// DefaultCacheDir returns the per-user cache directory for scc
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appName)
	}

	return filepath.Join(os.TempDir(), appName+"-cache")
}

func Load() (*Config, error) {
	cfg := &Config{
		CacheDir:     viper.GetString("cache_dir"),
		CompilerPath: viper.GetString("compiler_path"),
		CompilerArgs: viper.GetStringSlice("compiler_args"),
		Template:     viper.GetString("template"),
		Context:      viper.GetString("context"),
		ClassPath:    viper.GetStringSlice("classpath"),
		Recompile:    viper.GetBool("recompile"),
		Verbose:      viper.GetBool("verbose"),
		LogLevel:     viper.GetString("log_level"),
	}

	// Apply defaults if not set
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir()
	}

	if cfg.CompilerPath == "" {
		cfg.CompilerPath = DefaultCompilerPath
	}

	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}

	if cfg.Context == "" {
		cfg.Context = DefaultContext
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache directory not specified")
	}

	abs, err := filepath.Abs(c.CacheDir)
	if err != nil {
		return fmt.Errorf("invalid cache directory: %v", err)
	}

	c.CacheDir = abs

	if c.CompilerPath == "" {
		return fmt.Errorf("compiler path not specified")
	}

	// Bare command names are looked up on PATH
	if strings.ContainsRune(c.CompilerPath, filepath.Separator) || strings.ContainsRune(c.CompilerPath, '/') {
		abs, err := filepath.Abs(c.CompilerPath)
		if err != nil {
			return fmt.Errorf("invalid compiler path: %v", err)
		}

		c.CompilerPath = abs
	}

	if !isValidIdentity(c.Template) {
		return fmt.Errorf("invalid template: %q", c.Template)
	}

	if !isValidIdentity(c.Context) {
		return fmt.Errorf("invalid context: %q", c.Context)
	}

	// Resolve classpath entries
	for i, entry := range c.ClassPath {
		if entry != "" {
			abs, err := filepath.Abs(entry)
			if err != nil {
				return fmt.Errorf("invalid classpath entry: %v", err)
			}

			c.ClassPath[i] = abs
		}
	}

	return nil
}

func isValidIdentity(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.ContainsRune(id, 0)
}
