package script

import (
	"strings"

	"github.com/Norgate-AV/scc/internal/cacheerr"
)

// TemplateID names the compilation template a script is compiled against.
// It is a registered name, not a rendering of some runtime object, so two
// processes compiling the same script agree on it.
type TemplateID string

// ContextID names the parent execution context the compiled script will be
// loaded into. Same rules as TemplateID.
type ContextID string

func validateID(field, id string) error {
	if id == "" {
		return cacheerr.InvalidInput(field, "identity is empty")
	}

	if strings.ContainsRune(id, 0) {
		return cacheerr.InvalidInput(field, "identity contains a NUL byte")
	}

	return nil
}

// ClassPath is an ordered set of dependency artifacts.
type ClassPath []string

// NewClassPath drops empty and repeated entries, keeping first occurrences.
func NewClassPath(entries ...string) ClassPath {
	seen := make(map[string]bool, len(entries))
	cp := make(ClassPath, 0, len(entries))

	for _, e := range entries {
		if e == "" || seen[e] {
			continue
		}

		seen[e] = true
		cp = append(cp, e)
	}

	return cp
}

// Request is a request to compile one script.
type Request struct {
	Template      TemplateID
	Source        SourceUnit
	Dependencies  ClassPath
	ParentContext ContextID
	Description   string
	ExtraSources  []string
}

// Validate checks the fields that take part in the cache key.
func (r Request) Validate() error {
	if err := validateID("template", string(r.Template)); err != nil {
		return err
	}

	if err := validateID("parentContext", string(r.ParentContext)); err != nil {
		return err
	}

	return r.Source.Validate()
}

// Label is the human readable name of the request.
func (r Request) Label() string {
	if r.Description != "" {
		return r.Description
	}

	return r.Source.Path()
}

// CompiledArtifact is a read-only view of a compiled script in the cache.
// Hits and misses return the same shape.
type CompiledArtifact struct {
	// Location is the entry's output directory.
	Location string

	// SymbolName is the top-level symbol produced by the compiler.
	SymbolName string

	Request Request
}
