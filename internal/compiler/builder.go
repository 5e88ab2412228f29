package compiler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/Norgate-AV/scc/internal/cacheerr"
	"github.com/Norgate-AV/scc/internal/codes"
	"github.com/Norgate-AV/scc/internal/script"
	"github.com/Norgate-AV/scc/internal/utils"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// exitCoder is satisfied by *exec.ExitError and test doubles
type exitCoder interface {
	ExitCode() int
}

// CommandBuilder builds and runs Kotlin compiler command lines
type CommandBuilder struct {
	// CompilerPath is the compiler executable
	CompilerPath string

	// ExtraArgs are prepended to every invocation
	ExtraArgs []string

	// Stdout receives the compiler's standard output, if set
	Stdout io.Writer

	execCommand func(ctx context.Context, name string, stdout, stderr io.Writer, args ...string) Commander
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(compilerPath string, extraArgs ...string) *CommandBuilder {
	return &CommandBuilder{
		CompilerPath: compilerPath,
		ExtraArgs:    extraArgs,
		execCommand: func(ctx context.Context, name string, stdout, stderr io.Writer, args ...string) Commander {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdout = stdout
			cmd.Stderr = stderr
			return cmd
		},
	}
}

// BuildScriptArgs builds the command arguments for a script compilation
func (cb *CommandBuilder) BuildScriptArgs(spec ScriptSpec) ([]string, error) {
	if spec.SourceFile == "" {
		return nil, cacheerr.InvalidInput("sourceFile", "no script to compile")
	}

	cmdArgs := cb.commonArgs(spec.OutputDir, spec.Dependencies)

	if spec.Template != "" {
		cmdArgs = append(cmdArgs, "-script-templates", string(spec.Template))
	}

	files := append([]string{spec.SourceFile}, spec.ExtraSources...)
	abs, err := absFiles(files)
	if err != nil {
		return nil, err
	}

	return append(cmdArgs, abs...), nil
}

// BuildLibraryArgs builds the command arguments for a library compilation
func (cb *CommandBuilder) BuildLibraryArgs(spec LibrarySpec) ([]string, error) {
	if len(spec.SourceFiles) == 0 {
		return nil, cacheerr.InvalidInput("sourceFiles", "at least one source file is required")
	}

	cmdArgs := cb.commonArgs(spec.OutputDir, spec.Dependencies)

	abs, err := absFiles(spec.SourceFiles)
	if err != nil {
		return nil, err
	}

	return append(cmdArgs, abs...), nil
}

func (cb *CommandBuilder) commonArgs(outputDir string, deps script.ClassPath) []string {
	var cmdArgs []string
	cmdArgs = append(cmdArgs, cb.ExtraArgs...)
	cmdArgs = append(cmdArgs, "-d", outputDir)

	if len(deps) > 0 {
		cmdArgs = append(cmdArgs, "-cp", strings.Join(deps, string(os.PathListSeparator)))
	}

	return cmdArgs
}

func absFiles(files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, file := range files {
		absFile, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", file, err)
		}

		out = append(out, absFile)
	}

	return out, nil
}

// Compile runs the compiler on a script and returns the script's class name
func (cb *CommandBuilder) Compile(ctx context.Context, spec ScriptSpec) (string, error) {
	cmdArgs, err := cb.BuildScriptArgs(spec)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := cb.ExecuteCommand(ctx, cmdArgs, spec.Diagnostics, spec.LineOffset); err != nil {
		return "", err
	}

	logical := spec.LogicalPath
	if logical == "" {
		logical = spec.SourceFile
	}

	return utils.ScriptSymbolName(logical), nil
}

// CompileLibrary runs the compiler on a set of library sources
func (cb *CommandBuilder) CompileLibrary(ctx context.Context, spec LibrarySpec) error {
	cmdArgs, err := cb.BuildLibraryArgs(spec)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	return cb.ExecuteCommand(ctx, cmdArgs, spec.Diagnostics, 0)
}

// ExecuteCommand executes the compiler command, forwarding stderr lines to sink
func (cb *CommandBuilder) ExecuteCommand(ctx context.Context, cmdArgs []string, sink DiagnosticsSink, lineOffset int) error {
	log.WithField("compiler", cb.CompilerPath).Debugf("running %s %s", cb.CompilerPath, strings.Join(cmdArgs, " "))

	stdout := cb.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	var stderr bytes.Buffer
	c := cb.execCommand(ctx, cb.CompilerPath, stdout, &stderr, cmdArgs...)
	runErr := c.Run()

	collected := &Collector{}
	scanner := bufio.NewScanner(&stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d := ParseDiagnostic(line, lineOffset)
		collected.Report(d)
		report(sink, d)
	}

	if runErr == nil {
		return nil
	}

	var exitErr exitCoder
	if errors.As(runErr, &exitErr) {
		code := exitErr.ExitCode()
		if codes.IsSuccess(code) {
			return nil
		}

		return &cacheerr.CompilationFailedError{
			Diagnostics: collected.Diagnostics(),
			Err:         fmt.Errorf("exit code %d: %s", code, codes.GetErrorMessage(code)),
		}
	}

	return &cacheerr.CompilationFailedError{
		Diagnostics: collected.Diagnostics(),
		Err:         fmt.Errorf("failed to run compiler %s: %w", cb.CompilerPath, runErr),
	}
}

// ParseDiagnostic splits a "location: severity: message" compiler line.
// Line numbers in the location are shifted by lineOffset.
func ParseDiagnostic(line string, lineOffset int) cacheerr.Diagnostic {
	for _, severity := range []string{"error", "warning", "info", "exception"} {
		if loc, msg, ok := strings.Cut(line, ": "+severity+": "); ok {
			return cacheerr.Diagnostic{
				Severity: severity,
				Message:  msg,
				Location: shiftLine(loc, lineOffset),
			}
		}

		if msg, ok := strings.CutPrefix(line, severity+": "); ok {
			return cacheerr.Diagnostic{Severity: severity, Message: msg}
		}
	}

	return cacheerr.Diagnostic{Message: line}
}

// shiftLine adds offset to the line in "file:line" or "file:line:col"
func shiftLine(loc string, offset int) string {
	if offset == 0 {
		return loc
	}

	parts := strings.Split(loc, ":")
	n := len(parts)

	idx := -1
	switch {
	case n >= 3 && isNumber(parts[n-1]) && isNumber(parts[n-2]):
		idx = n - 2
	case n >= 2 && isNumber(parts[n-1]):
		idx = n - 1
	}

	if idx < 0 {
		return loc
	}

	line, _ := strconv.Atoi(parts[idx])
	parts[idx] = strconv.Itoa(line + offset)
	return strings.Join(parts, ":")
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
