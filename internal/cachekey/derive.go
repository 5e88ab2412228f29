package cachekey

import (
	"fmt"
	"path/filepath"

	"github.com/Norgate-AV/scc/internal/cacheerr"
	"github.com/Norgate-AV/scc/internal/script"
)

const (
	scriptNamespace  = "kotlin-dsl"
	libraryNamespace = "kotlin-dsl-library"
)

// Derive folds a script request into a Spec: namespace, template, logical
// file name, parent context, dependencies, then the source content.
func Derive(req script.Request) (Spec, error) {
	if err := req.Validate(); err != nil {
		return Spec{}, err
	}

	spec := New(scriptNamespace).
		Text(string(req.Template)).
		Text(req.Source.FileName()).
		Text(string(req.ParentContext))

	spec, err := foldClassPath(spec, req.Dependencies)
	if err != nil {
		return Spec{}, err
	}

	switch req.Source.Kind() {
	case script.KindInline:
		text, _ := req.Source.Text()
		spec = spec.Bytes([]byte(text))
	case script.KindFile:
		file, _ := req.Source.File()
		sum, err := HashFile(file)
		if err != nil {
			return Spec{}, fmt.Errorf("failed to hash source file: %w", err)
		}

		spec = spec.Fingerprint(sum)
	}

	return spec, nil
}

// DeriveLibrary folds the dependencies then every source file, in the order
// given. Reordering sourceFiles yields a different key.
func DeriveLibrary(sourceFiles []string, deps script.ClassPath) (Spec, error) {
	if len(sourceFiles) == 0 {
		return Spec{}, cacheerr.InvalidInput("sourceFiles", "at least one source file is required")
	}

	for _, f := range sourceFiles {
		if f == "" {
			return Spec{}, cacheerr.InvalidInput("sourceFiles", "empty file path")
		}
	}

	spec, err := foldClassPath(New(libraryNamespace), deps)
	if err != nil {
		return Spec{}, err
	}

	for _, f := range sourceFiles {
		sum, err := HashFile(f)
		if err != nil {
			return Spec{}, fmt.Errorf("failed to hash source file %s: %w", f, err)
		}

		spec = spec.Text(filepath.Base(f)).Fingerprint(sum)
	}

	return spec, nil
}

// foldClassPath folds deps as an ordered set; repeated entries count once
func foldClassPath(spec Spec, deps script.ClassPath) (Spec, error) {
	deps = script.NewClassPath(deps...)
	spec = spec.Text(fmt.Sprintf("classpath:%d", len(deps)))

	for _, dep := range deps {
		sum, err := HashPath(dep)
		if err != nil {
			return Spec{}, fmt.Errorf("failed to hash dependency %s: %w", dep, err)
		}

		spec = spec.Text(dep).Fingerprint(sum)
	}

	return spec, nil
}
