package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type suffixFilter struct {
	ext        string
	excludeDir string
}

func (f suffixFilter) SkipDir(path string) bool  { return filepath.Base(path) == f.excludeDir }
func (f suffixFilter) SkipFile(path string) bool { return !strings.HasSuffix(path, f.ext) }

func waitForPaths(t *testing.T, ch <-chan []string, timeout time.Duration) []string {
	t.Helper()
	select {
	case paths := <-ch:
		return paths
	case <-time.After(timeout):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestNewWatcher_RejectsMissingArguments(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, suffixFilter{ext: ".py"}, nil, nil)
	require.True(t, errors.Is(err, os.ErrInvalid))
	assert.Nil(t, w)

	w, err = NewWatcher(100*time.Millisecond, nil, nil, func([]string) {})
	require.True(t, errors.Is(err, os.ErrInvalid))
	assert.Nil(t, w)
}

func TestWatcher_DebouncesSourceChanges(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan []string, 4)
	w, err := NewWatcher(100*time.Millisecond, suffixFilter{ext: ".py", excludeDir: "venv"}, nil, func(paths []string) {
		changes <- paths
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(a, []byte("import os\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("import sys\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	paths := waitForPaths(t, changes, 2*time.Second)
	assert.Contains(t, paths, a)
	for _, p := range paths {
		assert.NotEqual(t, "notes.txt", filepath.Base(p))
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, suffixFilter{ext: ".py", excludeDir: "venv"}, nil, func(paths []string) {
		changes <- paths
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	pkg := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	time.Sleep(100 * time.Millisecond)
	mod := filepath.Join(pkg, "mod.py")
	require.NoError(t, os.WriteFile(mod, []byte("x = 1\n"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case paths := <-changes:
			for _, p := range paths {
				if p == mod {
					return
				}
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", mod)
		}
	}
}

func TestWatcher_RemovalIsReported(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gone.py")
	require.NoError(t, os.WriteFile(target, []byte("x = 1\n"), 0o644))

	changes := make(chan []string, 4)
	w, err := NewWatcher(50*time.Millisecond, suffixFilter{ext: ".py"}, nil, func(paths []string) {
		changes <- paths
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.Remove(target))
	assert.Contains(t, waitForPaths(t, changes, 2*time.Second), target)
}
