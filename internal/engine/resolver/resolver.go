package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"importcheck/internal/engine/index"
	"importcheck/internal/engine/parser"
	"importcheck/internal/shared/diag"
	"importcheck/internal/shared/observability"

	"golang.org/x/sync/errgroup"
)

// Step identifies which rule settled an import.
type Step int

const (
	StepLocalModule Step = iota + 1
	StepLocalPackage
	StepLocalAttribute
	StepExternal
)

func (s Step) String() string {
	switch s {
	case StepLocalModule:
		return "local-module"
	case StepLocalPackage:
		return "local-package"
	case StepLocalAttribute:
		return "local-attribute"
	case StepExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of classifying one import. Issue is nil when
// the import is valid.
type Resolution struct {
	Step  Step
	Issue *ImportIssue
}

type Resolver struct {
	layout   Layout
	provider ExternalModuleProvider
	sink     *diag.Sink
	workers  int
	stat     func(string) (os.FileInfo, error)
}

type Option func(*Resolver)

func WithLayout(l Layout) Option {
	return func(r *Resolver) { r.layout = l }
}

// WithWorkers bounds concurrency of the local steps. Provider lookups are
// always sequential.
func WithWorkers(n int) Option {
	return func(r *Resolver) { r.workers = n }
}

func WithSink(s *diag.Sink) Option {
	return func(r *Resolver) { r.sink = s }
}

func WithStat(fn func(string) (os.FileInfo, error)) Option {
	return func(r *Resolver) { r.stat = fn }
}

func NewResolver(provider ExternalModuleProvider, opts ...Option) *Resolver {
	r := &Resolver{
		layout:   DefaultLayout(),
		provider: provider,
		stat:     os.Stat,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.layout = r.layout.normalized()
	if r.workers < 1 {
		r.workers = runtime.NumCPU()
	}
	return r
}

// Resolve classifies every recorded import of every indexed file. Issues
// are ordered by index iteration order, then by import path, regardless of
// how many workers ran. The only error is context cancellation.
//
// Local steps fan out over the workers. External lookups then go to the
// provider one at a time in that same order, since provider answers may
// depend on the lookups before them.
func (r *Resolver) Resolve(ctx context.Context, root string, idx *index.Index) ([]ImportIssue, error) {
	ctx, span := observability.Tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	}()

	root = filepath.Clean(root)
	paths := idx.Paths()
	perFile := make([][]pendingImport, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, path := range paths {
		g.Go(func() error {
			pending, err := r.classifyFileLocal(gctx, root, idx, path)
			if err != nil {
				return err
			}
			perFile[i] = pending
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		issues   []ImportIssue
		external int
	)
	for i, pending := range perFile {
		for _, p := range pending {
			if p.external {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				external++
				p.res = r.classifyExternal(ctx, paths[i], p.path)
			}
			if p.res.Issue != nil {
				issues = append(issues, *p.res.Issue)
			}
		}
	}
	for _, issue := range issues {
		observability.IssuesTotal.WithLabelValues(issue.Kind.String()).Inc()
	}
	r.sink.Debug("resolution finished", "files", len(paths), "external_lookups", external, "issues", len(issues))
	return issues, nil
}

// pendingImport is one import after the local steps. external marks it for
// the provider pass.
type pendingImport struct {
	path     parser.DottedPath
	res      Resolution
	external bool
}

func (r *Resolver) classifyFileLocal(ctx context.Context, root string, idx *index.Index, file string) ([]pendingImport, error) {
	facts, ok := idx.Facts(file)
	if !ok {
		return nil, nil
	}
	imports := facts.Imports()
	pending := make([]pendingImport, 0, len(imports))
	for _, imp := range imports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, settled := r.classifyLocal(root, idx, file, imp)
		pending = append(pending, pendingImport{path: imp, res: res, external: !settled})
	}
	return pending, nil
}

// Classify applies the resolution rules, in order, to one import of file:
//  1. <root>/<mod...>/<attr><ext> is an indexed file: a sibling module.
//  2. <root>/<mod...>/<attr>/<init> exists: a sub-package.
//  3. <root>/<mod...><ext> is an indexed file: the attribute must be among
//     its definitions. A miss is reported and the external lookup is never
//     consulted.
//  4. Otherwise the provider decides.
//
// Single-segment paths go straight to the provider.
func (r *Resolver) Classify(ctx context.Context, root string, idx *index.Index, file string, path parser.DottedPath) Resolution {
	if res, settled := r.classifyLocal(filepath.Clean(root), idx, file, path); settled {
		return res
	}
	return r.classifyExternal(ctx, file, path)
}

// classifyLocal runs steps 1 to 3. settled is false when only the provider
// can decide.
func (r *Resolver) classifyLocal(root string, idx *index.Index, file string, path parser.DottedPath) (res Resolution, settled bool) {
	modSegs, attr := path.Split()
	if len(modSegs) == 0 {
		return Resolution{}, false
	}
	modDir := filepath.Join(append([]string{root}, modSegs...)...)

	if idx.Has(filepath.Join(modDir, attr+r.layout.SourceExtension)) {
		return Resolution{Step: StepLocalModule}, true
	}

	if _, err := r.stat(filepath.Join(modDir, attr, r.layout.PackageInitFile)); err == nil {
		return Resolution{Step: StepLocalPackage}, true
	}

	if facts, ok := idx.Facts(modDir + r.layout.SourceExtension); ok {
		if facts.Defines(attr) {
			return Resolution{Step: StepLocalAttribute}, true
		}
		return Resolution{Step: StepLocalAttribute, Issue: &ImportIssue{
			File:       file,
			ImportPath: path,
			Message:    fmt.Sprintf("'%s' does not define '%s'", strings.Join(modSegs, "."), attr),
			Kind:       IssueUndefined,
		}}, true
	}
	return Resolution{}, false
}

func (r *Resolver) classifyExternal(ctx context.Context, file string, path parser.DottedPath) Resolution {
	res := r.validateExternal(ctx, file, path)
	if res.Status == StatusResolved {
		return Resolution{Step: StepExternal}
	}
	return Resolution{Step: StepExternal, Issue: &ImportIssue{
		File:       file,
		ImportPath: path,
		Message:    externalMessage(path, file, res),
		Kind:       IssueExternal,
	}}
}

// validateExternal never lets a provider failure escape: errors and panics
// become StatusOtherError.
func (r *Resolver) validateExternal(ctx context.Context, file string, path parser.DottedPath) (res ExternalResult) {
	name := providerName(r.provider)
	defer func() {
		if rec := recover(); rec != nil {
			r.sink.Error(file, "external module provider panicked", fmt.Errorf("%v", rec))
			res = ExternalResult{Status: StatusOtherError, Detail: ImportErrorMessage(path, fmt.Sprintf("provider panic: %v", rec))}
		}
		observability.ProviderCallsTotal.WithLabelValues(name, res.Status.String()).Inc()
	}()

	if r.provider == nil {
		return ExternalResult{Status: StatusOtherError, Detail: ImportErrorMessage(path, "no external module provider configured")}
	}

	out, err := r.provider.Validate(ctx, path, file)
	if err != nil {
		r.sink.Debug("external module provider failed", "path", file, "import", path.String(), "error", err)
		return ExternalResult{Status: StatusOtherError, Detail: ImportErrorMessage(path, err.Error())}
	}
	return out
}

func externalMessage(path parser.DottedPath, file string, res ExternalResult) string {
	if res.Detail != "" {
		return res.Detail
	}
	module, attr := SplitForProvider(path)
	switch res.Status {
	case StatusModuleNotFound:
		return ModuleNotFoundMessage(module, file, "")
	case StatusAttributeNotFound:
		return AttributeNotFoundMessage(module, attr, file)
	default:
		return ImportErrorMessage(path, "unknown error")
	}
}

func providerName(p ExternalModuleProvider) string {
	if named, ok := p.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "custom"
}
