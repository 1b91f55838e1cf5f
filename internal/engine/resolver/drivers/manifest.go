package drivers

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/engine/parser"
	"importcheck/internal/engine/resolver"
)

//go:embed stdlib_modules.txt
var stdlibModules string

// ManifestProvider resolves top-level modules from static sources only: the
// interpreter's standard library names, an installed-packages manifest and
// site-packages directories. Nothing is imported, so attributes of a known
// module are always accepted.
type ManifestProvider struct {
	stdlib       map[string]bool
	packages     map[string]bool
	sitePackages []string
}

func NewManifestProvider(packages []string, sitePackages []string) *ManifestProvider {
	p := &ManifestProvider{
		stdlib:   parseNameList(strings.NewReader(stdlibModules)),
		packages: make(map[string]bool, len(packages)),
	}
	for _, name := range packages {
		if n := normalizeDistName(name); n != "" {
			p.packages[n] = true
		}
	}
	for _, dir := range sitePackages {
		if strings.TrimSpace(dir) != "" {
			p.sitePackages = append(p.sitePackages, filepath.Clean(dir))
		}
	}
	return p
}

// LoadPackagesFile reads a pip-freeze style manifest: one requirement per
// line, versions and extras ignored, comments and editable installs skipped.
func LoadPackagesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeNotFound, "open packages file"),
			domainerrors.CtxPath, path)
	}
	defer f.Close()
	return parsePackages(f)
}

func parsePackages(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.IndexAny(line, "=<>!~;[@ \t"); i >= 0 {
			line = line[:i]
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out, scanner.Err()
}

func parseNameList(r io.Reader) map[string]bool {
	names := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" && !strings.HasPrefix(name, "#") {
			names[name] = true
		}
	}
	return names
}

// normalizeDistName folds a distribution name onto import-name spelling.
func normalizeDistName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

func (p *ManifestProvider) Name() string { return KindManifest }

func (p *ManifestProvider) Close() error { return nil }

func (p *ManifestProvider) Validate(_ context.Context, path parser.DottedPath, sourceFile string) (resolver.ExternalResult, error) {
	if path == "" {
		return resolver.ExternalResult{Status: resolver.StatusOtherError, Detail: resolver.EmptyImportPathMessage}, nil
	}
	top := path.Segments()[0]
	if p.Known(top) {
		return resolver.Resolved(), nil
	}
	module, _ := resolver.SplitForProvider(path)
	return resolver.ExternalResult{
		Status: resolver.StatusModuleNotFound,
		Detail: resolver.ModuleNotFoundMessage(module, sourceFile, fmt.Sprintf("No module named '%s'", top)),
	}, nil
}

// Known reports whether a top-level module name is available.
func (p *ManifestProvider) Known(top string) bool {
	if p.stdlib[top] || p.packages[normalizeDistName(top)] {
		return true
	}
	for _, dir := range p.sitePackages {
		if probeSitePackages(dir, top) {
			return true
		}
	}
	return false
}

func probeSitePackages(dir, top string) bool {
	if info, err := os.Stat(filepath.Join(dir, top)); err == nil && info.IsDir() {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, top+".py")); err == nil {
		return true
	}
	for _, pattern := range []string{top + ".*.so", top + ".so", top + ".*.pyd", top + ".pyd"} {
		if matches, _ := filepath.Glob(filepath.Join(dir, pattern)); len(matches) > 0 {
			return true
		}
	}
	return false
}
