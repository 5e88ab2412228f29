package cachekey

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/scc/internal/cacheerr"
	"github.com/Norgate-AV/scc/internal/script"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func baseRequest() script.Request {
	return script.Request{
		Template:      "kotlin-script",
		Source:        script.InlineSource("build.gradle.kts", "println(1)", 0),
		ParentContext: "root",
		Description:   "build script",
	}
}

func mustHash(t *testing.T, req script.Request) string {
	t.Helper()
	spec, err := Derive(req)
	require.NoError(t, err)
	return spec.Hash()
}

func TestSpec_Encoding(t *testing.T) {
	// Component boundaries are part of the encoding.
	a := New("ns").Text("ab").Text("c")
	b := New("ns").Text("a").Text("bc")
	assert.NotEqual(t, a.Hash(), b.Hash())

	// Kinds are part of the encoding.
	assert.NotEqual(t, New("ns").Text("x").Hash(), New("ns").Bytes([]byte("x")).Hash())

	// Append does not mutate the receiver.
	base := New("ns")
	_ = base.Text("x")
	assert.Equal(t, 1, base.Len())

	assert.Len(t, a.Hash(), 64)
	assert.Equal(t, "ns | ab | c", a.Describe())
}

func TestDerive_Deterministic(t *testing.T) {
	r1 := baseRequest()
	r2 := baseRequest()
	r2.Description = "a different label"
	r2.ExtraSources = []string{"other.kt"}

	assert.Equal(t, mustHash(t, r1), mustHash(t, r2), "description and extra sources are not part of the key")
}

func TestDerive_Sensitivity(t *testing.T) {
	dep := writeFile(t, filepath.Join(t.TempDir(), "lib.jar"), "jar")
	base := mustHash(t, baseRequest())

	tests := []struct {
		name   string
		mutate func(*script.Request)
	}{
		{"template", func(r *script.Request) { r.Template = "kotlin-settings" }},
		{"content", func(r *script.Request) { r.Source = script.InlineSource("build.gradle.kts", "println(2)", 0) }},
		{"file name", func(r *script.Request) { r.Source = script.InlineSource("init.gradle.kts", "println(1)", 0) }},
		{"parent context", func(r *script.Request) { r.ParentContext = "buildSrc" }},
		{"dependencies", func(r *script.Request) { r.Dependencies = script.NewClassPath(dep) }},
	}

	seen := map[string]string{base: "base"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)

			hash := mustHash(t, req)
			prev, dup := seen[hash]
			assert.False(t, dup, "collides with %s", prev)
			seen[hash] = tt.name
		})
	}
}

func TestDerive_FileSource(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "build.gradle.kts"), "println(1)")

	req := baseRequest()
	req.Source = script.FileSource("build.gradle.kts", file, 0)
	first := mustHash(t, req)
	assert.Equal(t, first, mustHash(t, req))

	writeFile(t, file, "println(2)")
	assert.NotEqual(t, first, mustHash(t, req), "content change must change the key")

	req.Source = script.FileSource("build.gradle.kts", filepath.Join(dir, "missing.kts"), 0)
	_, err := Derive(req)
	assert.Error(t, err)
}

func TestDerive_DependencyContent(t *testing.T) {
	dep := writeFile(t, filepath.Join(t.TempDir(), "classes", "A.class"), "v1")

	req := baseRequest()
	req.Dependencies = script.NewClassPath(filepath.Dir(dep))
	first := mustHash(t, req)

	writeFile(t, dep, "v2")
	assert.NotEqual(t, first, mustHash(t, req), "dependency tree content is folded")
}

func TestDerive_InvalidInput(t *testing.T) {
	req := baseRequest()
	req.Template = ""

	_, err := Derive(req)
	require.Error(t, err)
	assert.True(t, cacheerr.IsInvalidInput(err))
}

func TestDeriveLibrary(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "A.kt"), "class A")
	b := writeFile(t, filepath.Join(dir, "B.kt"), "class B")

	ab, err := DeriveLibrary([]string{a, b}, nil)
	require.NoError(t, err)

	again, err := DeriveLibrary([]string{a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, ab.Hash(), again.Hash())

	ba, err := DeriveLibrary([]string{b, a}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, ab.Hash(), ba.Hash(), "source order is part of the key")

	withDep, err := DeriveLibrary([]string{a, b}, script.NewClassPath(filepath.Join(dir, "dep.jar")))
	require.NoError(t, err)
	assert.NotEqual(t, ab.Hash(), withDep.Hash())
}

func TestDeriveLibrary_Empty(t *testing.T) {
	_, err := DeriveLibrary(nil, script.NewClassPath("/does/not/matter.jar"))
	require.Error(t, err)
	assert.True(t, cacheerr.IsInvalidInput(err))

	_, err = DeriveLibrary([]string{""}, nil)
	assert.True(t, cacheerr.IsInvalidInput(err))
}

func TestHashPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tree", "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "tree", "sub", "b.txt"), "b")

	tree, err := HashPath(filepath.Join(dir, "tree"))
	require.NoError(t, err)
	assert.Len(t, tree, 64)

	missing, err := HashPath(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Equal(t, "absent", missing)

	file, err := HashPath(filepath.Join(dir, "tree", "a.txt"))
	require.NoError(t, err)

	direct, err := HashFile(filepath.Join(dir, "tree", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, direct, file)
}

func TestDerive_DependenciesAreASet(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.jar"), "a")
	b := writeFile(t, filepath.Join(dir, "b.jar"), "b")

	once := baseRequest()
	once.Dependencies = script.ClassPath{a, b}

	repeated := baseRequest()
	repeated.Dependencies = script.ClassPath{a, "", a, b, b}

	assert.Equal(t, mustHash(t, once), mustHash(t, repeated))

	lib, err := DeriveLibrary([]string{a}, script.ClassPath{b})
	require.NoError(t, err)
	libRepeated, err := DeriveLibrary([]string{a}, script.ClassPath{b, b})
	require.NoError(t, err)
	assert.Equal(t, lib.Hash(), libRepeated.Hash())
}
