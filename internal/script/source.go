// Package script describes what the cache is asked to compile and what it
// hands back.
package script

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/scc/internal/cacheerr"
)

// Kind tags the variant held by a SourceUnit.
type Kind int

const (
	// KindFile is a script backed by a file on disk.
	KindFile Kind = iota + 1
	// KindInline is a script whose body is held in memory.
	KindInline
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindInline:
		return "inline"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// SourceUnit is either a file reference or an inline body. Both variants carry
// a logical path used for diagnostics and key derivation.
type SourceUnit struct {
	kind       Kind
	path       string
	file       string
	text       string
	lineOffset int
}

// FileSource returns a file-backed source. path is the logical path; file is
// the physical file, and defaults to path when empty.
func FileSource(path, file string, lineOffset int) SourceUnit {
	if file == "" {
		file = path
	}

	return SourceUnit{kind: KindFile, path: path, file: file, lineOffset: lineOffset}
}

// InlineSource returns a source whose content is text, addressed by path.
func InlineSource(path, text string, lineOffset int) SourceUnit {
	return SourceUnit{kind: KindInline, path: path, text: text, lineOffset: lineOffset}
}

func (s SourceUnit) Kind() Kind { return s.kind }

// Path is the logical path of the source.
func (s SourceUnit) Path() string { return s.path }

// FileName is the last element of the logical path.
func (s SourceUnit) FileName() string { return filepath.Base(s.path) }

func (s SourceUnit) LineOffset() int { return s.lineOffset }

// File returns the physical file of a file-backed source.
func (s SourceUnit) File() (string, bool) {
	return s.file, s.kind == KindFile
}

// Text returns the body of an inline source.
func (s SourceUnit) Text() (string, bool) {
	return s.text, s.kind == KindInline
}

// Validate rejects the zero value and sources without a logical path.
func (s SourceUnit) Validate() error {
	switch s.kind {
	case KindFile:
		if s.file == "" {
			return cacheerr.InvalidInput("source", "file source has no backing file")
		}
	case KindInline:
	default:
		return cacheerr.InvalidInput("source", "unknown source kind "+s.kind.String())
	}

	if s.path == "" {
		return cacheerr.InvalidInput("source", "logical path is empty")
	}

	return nil
}

// Materialize returns the file the compiler should read. Inline bodies are
// written into dir under their logical file name, overwriting any previous
// copy; file sources resolve to their absolute backing file.
func (s SourceUnit) Materialize(dir string) (string, error) {
	switch s.kind {
	case KindFile:
		abs, err := filepath.Abs(s.file)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path for %s: %w", s.file, err)
		}

		return abs, nil
	case KindInline:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create source directory: %w", err)
		}

		dst := filepath.Join(dir, s.FileName())
		if err := os.WriteFile(dst, []byte(s.text), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", dst, err)
		}

		return dst, nil
	default:
		return "", s.Validate()
	}
}
