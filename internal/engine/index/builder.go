package index

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"importcheck/internal/engine/parser"
	"importcheck/internal/shared/diag"
	"importcheck/internal/shared/observability"

	"golang.org/x/sync/errgroup"
)

// FileParser extracts facts from one file's content.
type FileParser interface {
	ParseFile(path string, content []byte) (parser.FileFacts, error)
}

// PreParseHook runs against a file before it is read, e.g. an auto-fixer.
type PreParseHook func(ctx context.Context, path string)

type Builder struct {
	parser   FileParser
	sink     *diag.Sink
	workers  int
	readFile func(string) ([]byte, error)
	before   PreParseHook
}

type BuilderOption func(*Builder)

// WithWorkers bounds extraction concurrency. Values < 1 fall back to NumCPU.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) { b.workers = n }
}

func WithPreParseHook(hook PreParseHook) BuilderOption {
	return func(b *Builder) { b.before = hook }
}

func WithReadFile(fn func(string) ([]byte, error)) BuilderOption {
	return func(b *Builder) { b.readFile = fn }
}

func NewBuilder(p FileParser, sink *diag.Sink, opts ...BuilderOption) *Builder {
	b := &Builder{
		parser:   p,
		sink:     sink,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers < 1 {
		b.workers = runtime.NumCPU()
	}
	return b
}

type extraction struct {
	facts parser.FileFacts
	err   error
	read  bool
}

// Build extracts every path and returns the finished index together with
// the paths that were skipped because they could not be read or parsed.
// Skipped files never appear in the index.
func (b *Builder) Build(ctx context.Context, paths []string) (*Index, []string, error) {
	ctx, span := observability.Tracer.Start(ctx, "index.Build")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	}()

	facts, skipped, err := b.Extract(ctx, paths)
	if err != nil {
		return nil, nil, err
	}
	idx := New(facts)
	observability.IndexedFiles.Set(float64(idx.Len()))
	return idx, skipped, nil
}

// Extract runs the extractor over paths on the worker pool. Results are
// gathered into per-path slots and only read after the pool drains, so the
// returned values and emitted diagnostics follow sorted path order.
func (b *Builder) Extract(ctx context.Context, paths []string) (map[string]parser.FileFacts, []string, error) {
	unique := dedupePaths(paths)
	results := make([]extraction, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, path := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.extractOne(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	facts := make(map[string]parser.FileFacts, len(unique))
	var skipped []string
	for i, path := range unique {
		res := results[i]
		if res.err != nil {
			skipped = append(skipped, path)
			observability.ParseFailuresTotal.Inc()
			if res.read {
				b.sink.Warn(path, "syntax error, file skipped", res.err)
			} else {
				b.sink.Error(path, "error analyzing file", res.err)
			}
			continue
		}
		facts[path] = res.facts
		observability.FilesIndexedTotal.Inc()
	}
	b.sink.Debug("extraction finished", "files", len(facts), "skipped", len(skipped))
	return facts, skipped, nil
}

func (b *Builder) extractOne(ctx context.Context, path string) extraction {
	if b.before != nil {
		b.before(ctx, path)
	}
	content, err := b.readFile(path)
	if err != nil {
		return extraction{err: err}
	}
	facts, err := b.parser.ParseFile(path, content)
	if err != nil {
		return extraction{err: err, read: true}
	}
	return extraction{facts: facts, read: true}
}

func dedupePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	sort.Strings(out)
	return out
}
