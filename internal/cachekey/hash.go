package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashTree hashes every regular file below dir together with its slash
// separated relative path, in lexical order.
func HashTree(dir string) (string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Strings(files)

	h := sha256.New()
	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return "", err
		}

		sum, err := HashFile(path)
		if err != nil {
			return "", err
		}

		fmt.Fprintf(h, "%s\x00%s\x00", filepath.ToSlash(rel), sum)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashPath hashes a file or a directory tree. A missing path hashes to
// "absent" so that its later appearance changes the key.
func HashPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "absent", nil
		}

		return "", err
	}

	if info.IsDir() {
		return HashTree(path)
	}

	return HashFile(path)
}
