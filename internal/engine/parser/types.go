package parser

import (
	"sort"
	"strings"
)

// DottedPath is a non-empty, "."-separated identifier sequence such as
// "pkg.mod.name". The last segment is the attribute, the prefix is the
// module path.
type DottedPath string

// ParseDottedPath trims surrounding whitespace and rejects empty paths or
// paths with empty segments.
func ParseDottedPath(raw string) (DottedPath, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, seg := range strings.Split(raw, ".") {
		if strings.TrimSpace(seg) == "" {
			return "", false
		}
	}
	return DottedPath(raw), true
}

func (p DottedPath) String() string { return string(p) }

func (p DottedPath) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), ".")
}

// Split returns the module segments (possibly empty) and the attribute.
func (p DottedPath) Split() ([]string, string) {
	segs := p.Segments()
	if len(segs) == 0 {
		return nil, ""
	}
	return segs[:len(segs)-1], segs[len(segs)-1]
}

// Module returns the dotted module path, "" for single-segment paths.
func (p DottedPath) Module() string {
	idx := strings.LastIndex(string(p), ".")
	if idx < 0 {
		return ""
	}
	return string(p)[:idx]
}

// Attribute returns the last segment.
func (p DottedPath) Attribute() string {
	idx := strings.LastIndex(string(p), ".")
	return string(p)[idx+1:]
}

// FileFacts is what one source file imports and defines. It is immutable
// once built; re-analysing a file produces a fresh value.
type FileFacts struct {
	imports map[DottedPath]struct{}
	defined map[string]struct{}
}

// NewFileFacts builds facts from plain values. Empty entries are dropped.
func NewFileFacts(imports []string, defined []string) FileFacts {
	b := newFactsBuilder()
	for _, imp := range imports {
		b.addImport(imp)
	}
	for _, name := range defined {
		b.addDefined(name)
	}
	return b.build()
}

// Imports returns the recorded import paths in lexicographic order.
func (f FileFacts) Imports() []DottedPath {
	out := make([]DottedPath, 0, len(f.imports))
	for p := range f.imports {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Defined returns the recorded names in lexicographic order.
func (f FileFacts) Defined() []string {
	out := make([]string, 0, len(f.defined))
	for name := range f.defined {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f FileFacts) Defines(name string) bool {
	_, ok := f.defined[name]
	return ok
}

func (f FileFacts) hasImport(path DottedPath) bool {
	_, ok := f.imports[path]
	return ok
}

func (f FileFacts) ImportCount() int  { return len(f.imports) }
func (f FileFacts) DefinedCount() int { return len(f.defined) }

// equal reports whether both values hold the same sets.
func (f FileFacts) equal(other FileFacts) bool {
	if len(f.imports) != len(other.imports) || len(f.defined) != len(other.defined) {
		return false
	}
	for p := range f.imports {
		if _, ok := other.imports[p]; !ok {
			return false
		}
	}
	for name := range f.defined {
		if _, ok := other.defined[name]; !ok {
			return false
		}
	}
	return true
}

type factsBuilder struct {
	imports map[DottedPath]struct{}
	defined map[string]struct{}
}

func newFactsBuilder() *factsBuilder {
	return &factsBuilder{
		imports: make(map[DottedPath]struct{}),
		defined: make(map[string]struct{}),
	}
}

func (b *factsBuilder) addImport(raw string) {
	if p, ok := ParseDottedPath(raw); ok {
		b.imports[p] = struct{}{}
	}
}

func (b *factsBuilder) addDefined(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	b.defined[name] = struct{}{}
}

func (b *factsBuilder) build() FileFacts {
	facts := FileFacts{imports: b.imports, defined: b.defined}
	b.imports = nil
	b.defined = nil
	return facts
}
