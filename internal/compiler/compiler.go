// Package compiler defines the external compiler the cache delegates to and
// an implementation that runs the Kotlin compiler CLI.
package compiler

import (
	"context"
	"sync"

	"github.com/Norgate-AV/scc/internal/cacheerr"
	"github.com/Norgate-AV/scc/internal/script"
)

// ScriptSpec describes one script compilation.
type ScriptSpec struct {
	OutputDir  string
	SourceFile string

	// LogicalPath is the path diagnostics are reported against.
	LogicalPath string

	// LineOffset is added to line numbers in diagnostics.
	LineOffset int

	Template      script.TemplateID
	ExtraSources  []string
	Dependencies  script.ClassPath
	ParentContext script.ContextID
	Diagnostics   DiagnosticsSink
}

// LibrarySpec describes a library compilation.
type LibrarySpec struct {
	OutputDir    string
	SourceFiles  []string
	Dependencies script.ClassPath
	Diagnostics  DiagnosticsSink
}

// Compiler turns sources into compiled output. Implementations must be
// deterministic for identical arguments.
type Compiler interface {
	// Compile compiles a script and returns its top-level symbol name.
	Compile(ctx context.Context, spec ScriptSpec) (string, error)

	// CompileLibrary compiles sourceFiles into spec.OutputDir.
	CompileLibrary(ctx context.Context, spec LibrarySpec) error
}

// DiagnosticsSink receives compiler messages.
type DiagnosticsSink interface {
	Report(d cacheerr.Diagnostic)
}

// Collector is a DiagnosticsSink that keeps every message.
type Collector struct {
	mu    sync.Mutex
	items []cacheerr.Diagnostic
}

func (c *Collector) Report(d cacheerr.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = append(c.items, d)
}

// Diagnostics returns a copy of the collected messages.
func (c *Collector) Diagnostics() []cacheerr.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]cacheerr.Diagnostic(nil), c.items...)
}

func report(sink DiagnosticsSink, d cacheerr.Diagnostic) {
	if sink != nil {
		sink.Report(d)
	}
}
