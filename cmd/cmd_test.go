package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/scc/internal/compiler"
	"github.com/Norgate-AV/scc/internal/config"
	"github.com/Norgate-AV/scc/internal/utils"
)

// fakeCompiler writes one class file per script and counts invocations
type fakeCompiler struct {
	scripts   atomic.Int32
	libraries atomic.Int32
}

func (f *fakeCompiler) Compile(_ context.Context, spec compiler.ScriptSpec) (string, error) {
	f.scripts.Add(1)

	name := utils.ScriptSymbolName(spec.LogicalPath)
	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return "", err
	}

	return name, os.WriteFile(filepath.Join(spec.OutputDir, name+".class"), []byte("class"), 0o644)
}

func (f *fakeCompiler) CompileLibrary(_ context.Context, spec compiler.LibrarySpec) error {
	f.libraries.Add(1)
	return os.WriteFile(filepath.Join(spec.OutputDir, "lib.jar"), []byte("jar"), 0o644)
}

// runCLI executes the root command with args against a fresh cache
func runCLI(t *testing.T, fake *fakeCompiler, stdin string, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	color.NoColor = true

	original := newCompiler
	newCompiler = func(*config.Config) compiler.Compiler { return fake }
	t.Cleanup(func() { newCompiler = original })

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))

	err := root.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()

	t.Setenv("APPDATA", t.TempDir())
	t.Setenv("SCC_CACHE_DIR", "")
	t.Setenv("SCC_COMPILER", "")
	t.Setenv("SCC_LOG", "")

	return t.TempDir()
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCompile_CachesAcrossRuns(t *testing.T) {
	cacheDir := isolate(t)
	src := t.TempDir()
	build := writeScript(t, src, "build.gradle.kts", `println("build")`)
	settings := writeScript(t, src, "settings.gradle.kts", `println("settings")`)

	fake := &fakeCompiler{}

	out, err := runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, build, settings)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Build_gradle\t"), "results keep argument order")
	assert.True(t, strings.HasPrefix(lines[1], "Settings_gradle\t"))
	assert.Equal(t, int32(2), fake.scripts.Load())

	second, err := runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, build, settings)
	require.NoError(t, err)
	assert.Equal(t, out, second)
	assert.Equal(t, int32(2), fake.scripts.Load(), "second run is served from the cache")

	_, err = runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, "--recompile", build)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fake.scripts.Load())
}

func TestCompile_Stdin(t *testing.T) {
	cacheDir := isolate(t)
	fake := &fakeCompiler{}

	out, err := runCLI(t, fake, `println("hi")`, "compile", "--cache-dir", cacheDir, "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Stdin\t"))

	location := strings.TrimSpace(strings.SplitN(out, "\t", 2)[1])
	assert.FileExists(t, filepath.Join(filepath.Dir(location), "source", stdinScript))
}

func TestCompile_TemplateChangesKey(t *testing.T) {
	cacheDir := isolate(t)
	build := writeScript(t, t.TempDir(), "build.gradle.kts", "1")
	fake := &fakeCompiler{}

	_, err := runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, build)
	require.NoError(t, err)

	_, err = runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, "--template", "other.Template", build)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.scripts.Load())
}

func TestCompile_RequiresArgs(t *testing.T) {
	isolate(t)

	_, err := runCLI(t, &fakeCompiler{}, "", "compile")
	assert.Error(t, err)
}

func TestLibrary(t *testing.T) {
	cacheDir := isolate(t)
	src := t.TempDir()
	a := writeScript(t, src, "A.kt", "class A")
	b := writeScript(t, src, "B.kt", "class B")
	fake := &fakeCompiler{}

	out, err := runCLI(t, fake, "", "library", "--cache-dir", cacheDir, a, b)
	require.NoError(t, err)

	dir := strings.TrimSpace(out)
	assert.FileExists(t, filepath.Join(dir, "lib.jar"))

	again, err := runCLI(t, fake, "", "library", "--cache-dir", cacheDir, a, b)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, int32(1), fake.libraries.Load())
}

func TestCacheStatsAndList(t *testing.T) {
	cacheDir := isolate(t)
	build := writeScript(t, t.TempDir(), "build.gradle.kts", "1")
	fake := &fakeCompiler{}

	out, err := runCLI(t, fake, "", "cache", "stats", "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 0")

	_, err = runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, build)
	require.NoError(t, err)

	out, err = runCLI(t, fake, "", "cache", "stats", "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache:   "+cacheDir)
	assert.Contains(t, out, "Entries: 1")

	out, err = runCLI(t, fake, "", "cache", "list", "--cache-dir", cacheDir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "build.gradle.kts")
}

func TestCacheClear(t *testing.T) {
	cacheDir := isolate(t)
	build := writeScript(t, t.TempDir(), "build.gradle.kts", "1")
	fake := &fakeCompiler{}

	_, err := runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, build)
	require.NoError(t, err)

	out, err := runCLI(t, fake, "", "cache", "clear", "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 entry\n", out)

	_, err = runCLI(t, fake, "", "compile", "--cache-dir", cacheDir, build)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.scripts.Load())
}
