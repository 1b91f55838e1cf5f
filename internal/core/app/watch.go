package app

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"importcheck/internal/core/watcher"
	"importcheck/internal/shared/diag"
)

// Watch runs an initial analysis of root, then re-analyses after every
// debounced batch of filesystem changes until ctx is done. Only changed
// files are re-extracted; resolution always covers the whole index.
func (a *App) Watch(ctx context.Context, root string, onResult func(*RunResult)) error {
	scanner, err := a.NewScanner(root)
	if err != nil {
		return err
	}
	current, err := a.runWith(ctx, scanner)
	if err != nil {
		return err
	}
	onResult(current)

	// Callbacks are serialised by the watcher, so current needs no lock.
	w, err := watcher.NewWatcher(a.cfg.Watch.Debounce, scanner, a.logger, func(paths []string) {
		next, err := a.Refresh(ctx, scanner, current, paths)
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Error("re-analysis failed", "error", err)
			}
			return
		}
		current = next
		onResult(next)
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch([]string{scanner.ResolutionRoot()}); err != nil {
		return err
	}
	a.logger.Info("watching for changes", "root", scanner.Root(), "debounce", a.cfg.Watch.Debounce)
	<-ctx.Done()
	return nil
}

// Refresh derives a new result from prev after changed paths were
// modified, created or removed.
func (a *App) Refresh(ctx context.Context, scanner *Scanner, prev *RunResult, changed []string) (*RunResult, error) {
	start := time.Now()
	sink := diag.NewSink(a.logger)

	var updated, removed []string
	for _, path := range changed {
		path = filepath.Clean(path)
		info, err := os.Stat(path)
		switch {
		case err != nil:
			removed = append(removed, path)
			removed = append(removed, indexedUnder(prev, path)...)
		case info.IsDir():
			continue
		case !scanner.SkipFile(path):
			updated = append(updated, path)
		}
	}
	for _, path := range prev.Skipped {
		if _, err := os.Stat(path); err != nil {
			removed = append(removed, path)
		}
	}

	facts, skipped, err := a.newBuilder(sink).Extract(ctx, updated)
	if err != nil {
		return nil, err
	}
	sink.Debug("incremental extraction", "updated", len(facts), "removed", len(removed), "skipped", len(skipped))

	idx := prev.Index.Replace(facts, append(removed, skipped...))
	stillSkipped := make([]string, 0, len(prev.Skipped))
	for _, path := range prev.Skipped {
		if _, reparsed := facts[path]; !reparsed && !slices.Contains(removed, path) {
			stillSkipped = append(stillSkipped, path)
		}
	}
	return a.finish(ctx, scanner, sink, start, idx, sortedUnion(stillSkipped, skipped))
}

func indexedUnder(prev *RunResult, dir string) []string {
	prefix := dir + string(filepath.Separator)
	var out []string
	for _, path := range prev.Index.Paths() {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	return out
}
