// Package app wires scanning, extraction, resolution and history into one
// analysis run.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"importcheck/internal/core/config"
	"importcheck/internal/data/history"
	"importcheck/internal/engine/index"
	"importcheck/internal/engine/parser"
	"importcheck/internal/engine/resolver"
	"importcheck/internal/engine/resolver/drivers"
	"importcheck/internal/shared/diag"
	"importcheck/internal/shared/observability"
	"importcheck/internal/shared/util"

	"github.com/google/uuid"
)

type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	parser   *parser.Parser
	provider resolver.ExternalModuleProvider
	history  *history.Store
	venv     *VenvChecker

	closers []io.Closer
}

type Option func(*App)

// WithProvider replaces the provider built from configuration. The caller
// keeps ownership of it.
func WithProvider(p resolver.ExternalModuleProvider) Option {
	return func(a *App) { a.provider = p }
}

// WithHistory records runs in store. The caller keeps ownership of it.
func WithHistory(store *history.Store) Option {
	return func(a *App) { a.history = store }
}

func WithVenvChecker(v VenvChecker) Option {
	return func(a *App) { a.venv = &v }
}

func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		parser: parser.NewParser(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.provider == nil {
		p, err := drivers.New(drivers.Options{
			Kind:         cfg.Provider.Kind,
			Python:       cfg.Provider.Python,
			Rate:         cfg.Provider.Rate,
			Burst:        cfg.Provider.Burst,
			CacheSize:    cfg.Provider.CacheSize,
			PackagesFile: cfg.Provider.PackagesFile,
			SitePackages: cfg.Provider.SitePackages,
			Sink:         diag.NewSink(logger),
		})
		if err != nil {
			return nil, err
		}
		a.provider = p
		a.closers = append(a.closers, p)
	}

	if a.history == nil && cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.history = store
		a.closers = append(a.closers, store)
	}
	return a, nil
}

// Close releases the provider and history store the App created itself.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) History() *history.Store { return a.history }

// RunResult is the outcome of one analysis pass.
type RunResult struct {
	RunID          string
	Root           string
	ResolutionRoot string
	StartedAt      time.Time
	Duration       time.Duration
	Index          *index.Index
	Skipped        []string
	Issues         []resolver.ImportIssue
	Diagnostics    []diag.Diagnostic
}

// Counts splits the issues by kind.
func (r *RunResult) Counts() (undefined, external int) {
	for _, issue := range r.Issues {
		switch issue.Kind {
		case resolver.IssueUndefined:
			undefined++
		case resolver.IssueExternal:
			external++
		}
	}
	return undefined, external
}

// FilesAnalyzed counts files that made it into the index.
func (r *RunResult) FilesAnalyzed() int { return r.Index.Len() }

func (a *App) NewScanner(root string) (*Scanner, error) {
	return NewScanner(root, ScanOptions{
		Extension:    a.cfg.Analysis.SourceExtension,
		ExcludeDirs:  a.cfg.ExcludedDirs(),
		ExcludeFiles: a.cfg.Exclude.Files,
		Venv:         a.venv,
	})
}

// Run analyses root, a file or a directory. A missing root fails with a
// CodeNotFound error before anything is parsed.
func (a *App) Run(ctx context.Context, root string) (*RunResult, error) {
	scanner, err := a.NewScanner(root)
	if err != nil {
		return nil, err
	}
	return a.runWith(ctx, scanner)
}

func (a *App) runWith(ctx context.Context, scanner *Scanner) (*RunResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Run")
	defer span.End()

	start := time.Now()
	sink := diag.NewSink(a.logger)

	files, err := scanner.Scan()
	if err != nil {
		return nil, err
	}
	sink.Debug("scan finished", "root", scanner.Root(), "files", len(files))

	idx, skipped, err := a.newBuilder(sink).Build(ctx, files)
	if err != nil {
		return nil, err
	}
	return a.finish(ctx, scanner, sink, start, idx, skipped)
}

func (a *App) finish(ctx context.Context, scanner *Scanner, sink *diag.Sink, start time.Time, idx *index.Index, skipped []string) (*RunResult, error) {
	issues, err := a.newResolver(sink).Resolve(ctx, scanner.ResolutionRoot(), idx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:          uuid.NewString(),
		Root:           scanner.Root(),
		ResolutionRoot: scanner.ResolutionRoot(),
		StartedAt:      start.UTC(),
		Duration:       time.Since(start),
		Index:          idx,
		Skipped:        skipped,
		Issues:         issues,
	}
	a.record(result, sink)
	result.Diagnostics = sink.Entries()

	observability.AnalysisDuration.WithLabelValues("total").Observe(result.Duration.Seconds())
	a.logger.Debug("analysis finished",
		"run_id", result.RunID,
		"files", idx.Len(),
		"skipped", len(skipped),
		"issues", len(issues),
		"duration", result.Duration,
		"heap_mb", util.HeapAllocMB(),
	)
	return result, nil
}

func (a *App) newBuilder(sink *diag.Sink) *index.Builder {
	opts := []index.BuilderOption{index.WithWorkers(a.cfg.Analysis.Workers)}
	if a.cfg.Analysis.Fix {
		opts = append(opts, index.WithPreParseHook(NewRuffFixer(sink).Hook()))
	}
	return index.NewBuilder(a.parser, sink, opts...)
}

func (a *App) newResolver(sink *diag.Sink) *resolver.Resolver {
	return resolver.NewResolver(a.provider,
		resolver.WithLayout(resolver.Layout{
			SourceExtension: a.cfg.Analysis.SourceExtension,
			PackageInitFile: a.cfg.Analysis.PackageInitFile,
		}),
		resolver.WithWorkers(a.cfg.Analysis.Workers),
		resolver.WithSink(sink),
	)
}

// record stores the run when history is enabled. Failures are diagnostics,
// never fatal.
func (a *App) record(result *RunResult, sink *diag.Sink) {
	if a.history == nil {
		return
	}
	undefined, external := result.Counts()
	run := history.Run{
		ID:             result.RunID,
		Root:           result.Root,
		Timestamp:      result.StartedAt,
		Provider:       providerName(a.provider),
		FilesIndexed:   result.Index.Len(),
		FilesSkipped:   len(result.Skipped),
		UndefinedCount: undefined,
		ExternalCount:  external,
		Duration:       result.Duration,
	}
	records := make([]history.IssueRecord, 0, len(result.Issues))
	for _, issue := range result.Issues {
		records = append(records, history.IssueRecord{
			File:       issue.File,
			ImportPath: issue.ImportPath.String(),
			Kind:       issue.Kind.String(),
			Message:    issue.Message,
		})
	}
	if err := a.history.SaveRun(run, records); err != nil {
		sink.Warn(a.history.Path(), "failed to record run history", err)
	}
}

func providerName(p resolver.ExternalModuleProvider) string {
	if named, ok := p.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "custom"
}

func sortedUnion(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		seen[s] = true
	}
	return util.SortedStringKeys(seen)
}
