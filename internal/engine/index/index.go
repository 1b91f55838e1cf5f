// Package index holds the per-run mapping from source file to its extracted
// facts.
package index

import (
	"path/filepath"
	"sort"

	"importcheck/internal/engine/parser"
)

// Index maps absolute file paths to their facts. It is read-only once
// built; Replace derives a new index instead of mutating.
type Index struct {
	facts map[string]parser.FileFacts
	paths []string
}

// New builds an index from facts keyed by path. Keys are cleaned.
func New(facts map[string]parser.FileFacts) *Index {
	idx := &Index{facts: make(map[string]parser.FileFacts, len(facts))}
	for path, f := range facts {
		idx.facts[filepath.Clean(path)] = f
	}
	idx.sortPaths()
	return idx
}

func (i *Index) sortPaths() {
	i.paths = make([]string, 0, len(i.facts))
	for path := range i.facts {
		i.paths = append(i.paths, path)
	}
	sort.Strings(i.paths)
}

// Paths returns the indexed files in iteration order.
func (i *Index) Paths() []string {
	out := make([]string, len(i.paths))
	copy(out, i.paths)
	return out
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.facts)
}

func (i *Index) Has(path string) bool {
	if i == nil {
		return false
	}
	_, ok := i.facts[filepath.Clean(path)]
	return ok
}

func (i *Index) Facts(path string) (parser.FileFacts, bool) {
	if i == nil {
		return parser.FileFacts{}, false
	}
	f, ok := i.facts[filepath.Clean(path)]
	return f, ok
}

// Replace returns a new index with updates applied and removed paths
// dropped. The receiver is left untouched.
func (i *Index) Replace(updates map[string]parser.FileFacts, removed []string) *Index {
	next := make(map[string]parser.FileFacts, len(i.facts)+len(updates))
	for path, f := range i.facts {
		next[path] = f
	}
	for _, path := range removed {
		delete(next, filepath.Clean(path))
	}
	for path, f := range updates {
		next[filepath.Clean(path)] = f
	}
	return New(next)
}

// Stats summarises the index for reports.
type Stats struct {
	Files   int
	Imports int
	Defined int
}

func (i *Index) Stats() Stats {
	s := Stats{Files: i.Len()}
	if i == nil {
		return s
	}
	for _, f := range i.facts {
		s.Imports += f.ImportCount()
		s.Defined += f.DefinedCount()
	}
	return s
}
