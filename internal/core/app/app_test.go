package app

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"importcheck/internal/core/config"
	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/engine/parser"
	"importcheck/internal/engine/resolver"
	"importcheck/internal/shared/diag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func knownModules(names ...string) resolver.ExternalModuleProvider {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	return resolver.ProviderFunc(func(_ context.Context, path parser.DottedPath, file string) (resolver.ExternalResult, error) {
		if known[path.Segments()[0]] {
			return resolver.Resolved(), nil
		}
		return resolver.ExternalResult{Status: resolver.StatusModuleNotFound}, nil
	})
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	opts = append([]Option{WithProvider(knownModules("os", "sys", "json"))}, opts...)
	a, err := New(cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestScanner_SkipsExcludedAndVenvDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "notes.txt"), "")
	writeFile(t, filepath.Join(root, "__pycache__", "app.py"), "")
	writeFile(t, filepath.Join(root, "node_modules", "x.py"), "")
	writeFile(t, filepath.Join(root, "thing.egg-info", "setup.py"), "")
	writeFile(t, filepath.Join(root, "generated", "api_pb2.py"), "")
	writeFile(t, filepath.Join(root, "scripts", "deploy.py"), "")

	// A virtual environment under an unconventional name.
	venv := filepath.Join(root, "sandbox")
	for _, dir := range []string{"bin", "include", "lib"} {
		require.NoError(t, os.MkdirAll(filepath.Join(venv, dir), 0o755))
	}
	writeFile(t, filepath.Join(venv, "pyvenv.cfg"), "home = /usr/bin\n")
	writeFile(t, filepath.Join(venv, "lib", "site.py"), "")

	linux := NewVenvCheckerFor("linux")
	s, err := NewScanner(root, ScanOptions{
		Extension:    ".py",
		ExcludeDirs:  config.DefaultExcludedDirs,
		ExcludeFiles: []string{"*_pb2.py", "scripts/*"},
		Venv:         &linux,
	})
	require.NoError(t, err)

	files, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "app.py"),
		filepath.Join(root, "pkg", "mod.py"),
	}, files)
	assert.Equal(t, root, s.ResolutionRoot())
}

func TestScanner_SingleFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "tool.py")
	writeFile(t, file, "import os\n")

	s, err := NewScanner(file, ScanOptions{})
	require.NoError(t, err)
	files, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{file}, files)
	assert.Equal(t, root, s.ResolutionRoot())
	assert.False(t, s.SkipFile(file))
	assert.True(t, s.SkipFile(filepath.Join(root, "other.py")))
}

func TestScanner_Errors(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "missing"), ScanOptions{})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeNotFound))

	_, err = NewScanner(t.TempDir(), ScanOptions{ExcludeDirs: []string{"[bad"}})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))
}

func TestVenvChecker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pyvenv.cfg"), "")

	assert.True(t, NewVenvCheckerFor("plan9").IsVenv(dir))
	assert.False(t, NewVenvCheckerFor("linux").IsVenv(dir))

	for _, sub := range []string{"Scripts", "Include", "Lib"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	assert.True(t, NewVenvCheckerFor("windows").IsVenv(dir))
	assert.False(t, NewVenvCheckerFor("linux").IsVenv(filepath.Join(dir, "pyvenv.cfg")))
}

func TestFixer(t *testing.T) {
	sink := diag.NewSink(nil)
	var calls atomic.Int32
	var gotArgs []string
	f := NewRuffFixer(sink)
	f.run = func(_ context.Context, name string, args ...string) error {
		calls.Add(1)
		gotArgs = append([]string{name}, args...)
		return nil
	}
	assert.True(t, f.Fix(context.Background(), "/p/a.py"))
	assert.Equal(t, []string{"ruff", "check", "/p/a.py", "--fix"}, gotArgs)

	f.run = func(context.Context, string, ...string) error {
		return &exec.Error{Name: "ruff", Err: exec.ErrNotFound}
	}
	assert.False(t, f.Fix(context.Background(), "/p/a.py"))
	assert.False(t, f.Fix(context.Background(), "/p/b.py"))
	require.Len(t, sink.Entries(), 1)
	assert.Equal(t, diag.SeverityWarning, sink.Entries()[0].Severity)

	f.run = func(context.Context, string, ...string) error { return errors.New("spawn failed") }
	assert.False(t, f.Fix(context.Background(), "/p/c.py"))
	assert.Len(t, sink.Entries(), 2)
}

func TestRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "def foo():\n    pass\n")
	writeFile(t, filepath.Join(root, "app.py"), "import os\nfrom pkg.mod import foo, bar\nimport requests\n")
	writeFile(t, filepath.Join(root, "broken.py"), "def broken(:\n")
	writeFile(t, filepath.Join(root, "empty.py"), "")
	writeFile(t, filepath.Join(root, "venv", "lib", "skip.py"), "import nothing_here\n")

	cfg := config.Default()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	a := newTestApp(t, cfg)

	result, err := a.Run(context.Background(), root)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, root, result.ResolutionRoot)
	assert.Equal(t, 4, result.FilesAnalyzed())
	assert.Equal(t, []string{filepath.Join(root, "broken.py")}, result.Skipped)

	require.Len(t, result.Issues, 2)
	assert.Equal(t, parser.DottedPath("pkg.mod.bar"), result.Issues[0].ImportPath)
	assert.Equal(t, resolver.IssueUndefined, result.Issues[0].Kind)
	assert.Equal(t, parser.DottedPath("requests"), result.Issues[1].ImportPath)
	assert.Equal(t, resolver.IssueExternal, result.Issues[1].Kind)

	undefined, external := result.Counts()
	assert.Equal(t, 1, undefined)
	assert.Equal(t, 1, external)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, diag.SeverityWarning, result.Diagnostics[0].Severity)

	runs, err := a.History().ListRuns(root, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Equal(t, "custom", runs[0].Provider)
	assert.Equal(t, 2, runs[0].IssueCount())
}

func TestRun_SingleFileResolvesAgainstParent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "helpers", "text.py"), "def slug():\n    pass\n")
	file := filepath.Join(root, "main.py")
	writeFile(t, file, "from helpers.text import slug\n")

	result, err := newTestApp(t, nil).Run(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesAnalyzed())
	assert.Empty(t, result.Issues)
}

func TestRun_RootNotFound(t *testing.T) {
	_, err := newTestApp(t, nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeNotFound))
}

func TestRun_Deterministic(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeFile(t, filepath.Join(root, name+".py"), "import missing_"+name+"\nfrom a import nope_"+name+"\n")
	}
	cfg := config.Default()
	cfg.Analysis.Workers = 4
	a := newTestApp(t, cfg)

	first, err := a.Run(context.Background(), root)
	require.NoError(t, err)
	second, err := a.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, first.Issues, second.Issues)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRefresh_Incremental(t *testing.T) {
	root := t.TempDir()
	mod := filepath.Join(root, "pkg", "mod.py")
	app := filepath.Join(root, "app.py")
	writeFile(t, mod, "def foo():\n    pass\n")
	writeFile(t, app, "from pkg.mod import foo\n")

	a := newTestApp(t, nil)
	scanner, err := a.NewScanner(root)
	require.NoError(t, err)
	first, err := a.Run(context.Background(), root)
	require.NoError(t, err)
	require.Empty(t, first.Issues)

	// foo disappears from the module: the unchanged importer now fails.
	writeFile(t, mod, "def bar():\n    pass\n")
	second, err := a.Refresh(context.Background(), scanner, first, []string{mod})
	require.NoError(t, err)
	require.Len(t, second.Issues, 1)
	assert.Equal(t, resolver.IssueUndefined, second.Issues[0].Kind)
	assert.Equal(t, app, second.Issues[0].File)

	// Removing the package turns the import into an external lookup.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "pkg")))
	third, err := a.Refresh(context.Background(), scanner, second, []string{filepath.Join(root, "pkg")})
	require.NoError(t, err)
	assert.Equal(t, 1, third.FilesAnalyzed())
	require.Len(t, third.Issues, 1)
	assert.Equal(t, resolver.IssueExternal, third.Issues[0].Kind)

	// A file that stops parsing leaves the index.
	writeFile(t, app, "def broken(:\n")
	fourth, err := a.Refresh(context.Background(), scanner, third, []string{app})
	require.NoError(t, err)
	assert.Equal(t, 0, fourth.FilesAnalyzed())
	assert.Equal(t, []string{app}, fourth.Skipped)

	writeFile(t, app, "import os\n")
	fifth, err := a.Refresh(context.Background(), scanner, fourth, []string{app})
	require.NoError(t, err)
	assert.Equal(t, 1, fifth.FilesAnalyzed())
	assert.Empty(t, fifth.Skipped)
	assert.Empty(t, fifth.Issues)
}

func TestNew_BuildsConfiguredProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Kind = "manifest"
	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.py"), "import json\nimport surely_not_installed_pkg\n")
	result, err := a.Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0].Message, "Module not found: 'surely_not_installed_pkg'")
}

func TestNew_HistoryOpenFailure(t *testing.T) {
	cfg := config.Default()
	cfg.History.Enabled = true
	cfg.History.Path = t.TempDir()
	_, err := New(cfg, nil, WithProvider(knownModules()))
	require.Error(t, err)
}
