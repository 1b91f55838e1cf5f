package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"importcheck/internal/core/app"
	"importcheck/internal/core/config"
	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/data/history"
	"importcheck/internal/shared/observability"
	"importcheck/internal/shared/util"
	"importcheck/internal/shared/version"
	"importcheck/internal/ui/report"

	"github.com/spf13/cobra"
)

func newCheckCommand(global *globalOptions) *cobra.Command {
	var opts analysisOptions
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Analyse a project or single file once",
		Long: `Analyse a project directory, or a single Python file, once and print a report.

When path is a single file, only that file is analysed and its imports
resolve against the file's parent directory, so package directories next
to it are found on disk.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := openSession(ctx, cmd, global, &opts)
			if err != nil {
				return err
			}
			defer session.close()

			target, err := targetPath(args)
			if err != nil {
				return err
			}
			result, err := session.app.Run(ctx, target)
			if err != nil {
				return err
			}
			if err := session.render(cmd, result); err != nil {
				return err
			}
			if opts.failOnIssues && len(result.Issues) > 0 {
				return exitCodeError{code: exitIssues}
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func newWatchCommand(global *globalOptions) *cobra.Command {
	var (
		opts        analysisOptions
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Analyse a project and re-analyse on every change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := openSession(ctx, cmd, global, &opts)
			if err != nil {
				return err
			}
			defer session.close()

			addr := session.cfg.Observability.MetricsAddr
			if metricsAddr != "" {
				addr = metricsAddr
			}
			status := &runStatus{}
			if addr != "" {
				server := NewObservabilityServer(addr, status, session.logger)
				if err := server.Start(ctx); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = server.Stop(shutdownCtx)
				}()
			}

			target, err := targetPath(args)
			if err != nil {
				return err
			}
			return session.app.Watch(ctx, target, func(result *app.RunResult) {
				status.update(result)
				if err := session.render(cmd, result); err != nil {
					session.logger.Error("failed to write report", "error", err)
				}
			})
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	return cmd
}

func newHistoryCommand(global *globalOptions) *cobra.Command {
	var (
		limit  int
		all    bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "List recorded analysis runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), global.verbose)
			cfg, err := loadConfig(global.configPath, logger)
			if err != nil {
				return err
			}
			f, err := parseFormat(format)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			root := ""
			if !all {
				if root, err = targetPath(args); err != nil {
					return err
				}
			}
			runs, err := store.ListRuns(root, limit)
			if err != nil {
				return err
			}
			label := root
			if label == "" {
				label = "all roots"
			}
			return report.WriteHistory(cmd.OutOrStdout(), f, label, runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&all, "all", false, "list runs for every analysed root")
	cmd.Flags().StringVar(&format, "format", string(report.FormatText), "output format: text, json or yaml")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "importcheck %s\n", version.Version)
		},
	}
}

// session is the configured state shared by check and watch.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	app      *app.App
	format   report.Format
	output   string
	shutdown func(context.Context) error
}

func openSession(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts *analysisOptions) (*session, error) {
	logger := newLogger(cmd.ErrOrStderr(), global.verbose)
	cfg, err := loadConfig(global.configPath, logger)
	if err != nil {
		return nil, err
	}
	opts.apply(cfg)
	if err := finalizeConfig(cfg); err != nil {
		return nil, err
	}
	format, err := parseFormat(opts.format)
	if err != nil {
		return nil, err
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return &session{
		cfg:      cfg,
		logger:   logger,
		app:      a,
		format:   format,
		output:   opts.output,
		shutdown: shutdown,
	}, nil
}

// render writes the report to stdout, or replaces the --output file.
func (s *session) render(cmd *cobra.Command, result *app.RunResult) error {
	if s.output == "" {
		return report.Write(cmd.OutOrStdout(), s.format, reportData(result))
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, s.format, reportData(result)); err != nil {
		return err
	}
	if err := util.WriteFileWithDirs(s.output, buf.Bytes(), 0o644); err != nil {
		return domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "write report"),
			domainerrors.CtxPath, s.output)
	}
	return nil
}

func (s *session) close() {
	if err := s.app.Close(); err != nil {
		s.logger.Warn("failed to release resources", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		s.logger.Warn("failed to flush traces", "error", err)
	}
}

func reportData(result *app.RunResult) report.Data {
	return report.Data{
		RunID:         result.RunID,
		Root:          result.Root,
		StartedAt:     result.StartedAt,
		Duration:      result.Duration,
		FilesAnalyzed: result.FilesAnalyzed(),
		Skipped:       result.Skipped,
		Issues:        result.Issues,
		Diagnostics:   result.Diagnostics,
	}
}
