package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/shared/util"

	"github.com/gobwas/glob"
)

// Scanner lists the source files under a root, skipping excluded and
// virtual-environment directories.
type Scanner struct {
	root      string
	single    bool
	extension string
	dirGlobs  []glob.Glob
	fileGlobs []glob.Glob
	venv      VenvChecker
}

type ScanOptions struct {
	Extension    string
	ExcludeDirs  []string
	ExcludeFiles []string
	Venv         *VenvChecker
}

// NewScanner prepares a scanner for root, which may be a file or a
// directory. A missing root is a CodeNotFound error.
func NewScanner(root string, opts ScanOptions) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "resolve root path")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeNotFound, "path not found"),
			domainerrors.CtxPath, abs)
	}

	s := &Scanner{
		root:      abs,
		single:    !info.IsDir(),
		extension: opts.Extension,
		venv:      NewVenvChecker(),
	}
	if s.extension == "" {
		s.extension = ".py"
	}
	if opts.Venv != nil {
		s.venv = *opts.Venv
	}
	if s.dirGlobs, err = compileGlobs(opts.ExcludeDirs); err != nil {
		return nil, err
	}
	if s.fileGlobs, err = compileGlobs(opts.ExcludeFiles, '/'); err != nil {
		return nil, err
	}
	return s, nil
}

func compileGlobs(patterns []string, separators ...rune) ([]glob.Glob, error) {
	patterns = util.DedupeStrings(patterns)
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, separators...)
		if err != nil {
			return nil, domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeValidationError, "invalid exclude pattern"),
				"pattern", p)
		}
		out = append(out, g)
	}
	return out, nil
}

// Root is the absolute path that was scanned.
func (s *Scanner) Root() string { return s.root }

// ResolutionRoot is the directory dotted paths are resolved against: the
// root itself, or its parent when the root is a single file.
func (s *Scanner) ResolutionRoot() string {
	if s.single {
		return filepath.Dir(s.root)
	}
	return s.root
}

// Scan returns the source files in sorted order. A file root is returned
// as is, whatever its extension.
func (s *Scanner) Scan() ([]string, error) {
	if s.single {
		return []string{s.root}, nil
	}

	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			// Unreadable subtrees are skipped rather than aborting the scan.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != s.root && s.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.SkipFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "scan directory"),
			domainerrors.CtxPath, s.root)
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) SkipDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range s.dirGlobs {
		if g.Match(base) {
			return true
		}
	}
	return s.venv.IsVenv(path)
}

func (s *Scanner) SkipFile(path string) bool {
	if s.single {
		return filepath.Clean(path) != s.root
	}
	if !strings.HasSuffix(path, s.extension) {
		return true
	}
	if rel, err := filepath.Rel(s.root, path); err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	base := filepath.Base(path)
	rel := s.relative(path)
	for _, g := range s.fileGlobs {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	return false
}

func (s *Scanner) relative(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return util.NormalizePatternPath(path)
	}
	return util.NormalizePatternPath(rel)
}
