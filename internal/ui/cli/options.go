package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"importcheck/internal/core/config"
	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/ui/report"

	"github.com/spf13/cobra"
)

// analysisOptions are the flags shared by check and watch. Zero values
// leave the configuration untouched.
type analysisOptions struct {
	exclude      []string
	excludeFiles []string
	fix          bool
	format       string
	output       string
	provider     string
	python       string
	workers      int
	history      bool
	failOnIssues bool
}

func (o *analysisOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVar(&o.exclude, "exclude", nil, "directory name glob to skip (repeatable)")
	flags.StringArrayVar(&o.excludeFiles, "exclude-file", nil, "file glob to skip, matched against base name or relative path (repeatable)")
	flags.BoolVar(&o.fix, "fix", false, "run `ruff check --fix` on each file before parsing")
	flags.StringVar(&o.format, "format", string(report.FormatText), "report format: text, json, yaml or sarif")
	flags.StringVarP(&o.output, "output", "o", "", "write the report to this file instead of stdout")
	flags.StringVar(&o.provider, "provider", "", "external module provider: runtime, manifest or chain")
	flags.StringVar(&o.python, "python", "", "python interpreter used by the runtime provider")
	flags.IntVar(&o.workers, "workers", 0, "parallel workers (default: number of CPUs)")
	flags.BoolVar(&o.history, "history", false, "record the run in the history database")
	flags.BoolVar(&o.failOnIssues, "fail-on-issues", false, "exit with status 2 when any issue is found")
}

func (o *analysisOptions) apply(cfg *config.Config) {
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, o.exclude...)
	cfg.Exclude.Files = append(cfg.Exclude.Files, o.excludeFiles...)
	if o.fix {
		cfg.Analysis.Fix = true
	}
	if o.provider != "" {
		cfg.Provider.Kind = strings.ToLower(o.provider)
	}
	if o.python != "" {
		cfg.Provider.Python = o.python
	}
	if o.workers > 0 {
		cfg.Analysis.Workers = o.workers
	}
	if o.history {
		cfg.History.Enabled = true
	}
}

// loadConfig reads the explicit --config path, or DefaultFile from the
// working directory when it exists, then layers environment overrides.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case path != "":
		cfg, err = config.Load(path)
	case fileExists(config.DefaultFile):
		path = config.DefaultFile
		cfg, err = config.Load(path)
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}
	if applied := config.ApplyEnvOverrides(cfg); len(applied) > 0 {
		logger.Debug("applied environment overrides", "keys", applied)
	}
	return cfg, nil
}

// finalizeConfig validates the configuration after flags were applied.
func finalizeConfig(cfg *config.Config) error {
	return config.Validate(cfg)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func targetPath(args []string) (string, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "resolve target path")
	}
	return abs, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func parseFormat(s string) (report.Format, error) {
	f, err := report.ParseFormat(s)
	if err != nil {
		return "", fmt.Errorf("--format: %w", err)
	}
	return f, nil
}
