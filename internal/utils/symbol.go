package utils

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ScriptSymbolName derives the top-level class name the compiler gives a
// script file, e.g. "build.gradle.kts" becomes "Build_gradle"
func ScriptSymbolName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".kts")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "Script"
	}

	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0 && unicode.IsDigit(r):
			b.WriteRune('_')
			b.WriteRune(r)
		case i == 0 && unicode.IsLetter(r):
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}
