package app

import (
	"context"
	"errors"
	"os/exec"
	"sync"

	"importcheck/internal/shared/diag"
)

// Fixer runs an external auto-fixer over a file before it is parsed. A
// missing binary is reported once and never fails the run.
type Fixer struct {
	command string
	args    []string
	sink    *diag.Sink
	run     func(ctx context.Context, name string, args ...string) error

	missingOnce sync.Once
}

func NewRuffFixer(sink *diag.Sink) *Fixer {
	return &Fixer{
		command: "ruff",
		args:    []string{"check", "--fix"},
		sink:    sink,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Fix reports whether the fixer ran and exited cleanly. Lint findings that
// ruff could not fix give a non-zero exit and false.
func (f *Fixer) Fix(ctx context.Context, path string) bool {
	args := append([]string{f.args[0], path}, f.args[1:]...)
	err := f.run(ctx, f.command, args...)
	if err == nil {
		return true
	}
	if errors.Is(err, exec.ErrNotFound) {
		f.missingOnce.Do(func() {
			f.sink.Warn(path, "command not found: "+f.command, err)
		})
		return false
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		f.sink.Error(path, "fixer failed", err)
	}
	return false
}

// Hook adapts Fix to the index builder's pre-parse hook.
func (f *Fixer) Hook() func(ctx context.Context, path string) {
	return func(ctx context.Context, path string) { f.Fix(ctx, path) }
}
