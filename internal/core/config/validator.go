package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/gobwas/glob"

	domainerrors "importcheck/internal/core/errors"
)

func Validate(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateAnalysis,
		validateExclude,
		validateProvider,
		validateHistory,
		validateObservability,
		validateWatch,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return domainerrors.New(domainerrors.CodeValidationError, fmt.Sprintf(format, args...))
}

func validateAnalysis(cfg *Config) error {
	ext := cfg.Analysis.SourceExtension
	if len(ext) < 2 || strings.ContainsAny(ext, `/\ `) {
		return invalid("analysis.source_extension is invalid: %q", ext)
	}
	if strings.ContainsAny(cfg.Analysis.PackageInitFile, `/\`) {
		return invalid("analysis.package_init_file must be a file name, got %q", cfg.Analysis.PackageInitFile)
	}
	if cfg.Analysis.Workers < 0 {
		return invalid("analysis.workers must be >= 0, got %d", cfg.Analysis.Workers)
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return invalid("exclude.dirs pattern %q: %v", pattern, err)
		}
	}
	for _, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return invalid("exclude.files pattern %q: %v", pattern, err)
		}
	}
	return nil
}

func validateProvider(cfg *Config) error {
	switch cfg.Provider.Kind {
	case "runtime", "manifest", "chain":
	default:
		return invalid("provider.kind must be one of: runtime, manifest, chain")
	}
	if cfg.Provider.Rate < 0 {
		return invalid("provider.rate must be >= 0")
	}
	if cfg.Provider.Burst < 0 {
		return invalid("provider.burst must be >= 0")
	}
	if cfg.Provider.CacheSize < 0 {
		return invalid("provider.cache_size must be >= 0")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return invalid("history.path must not be empty when history is enabled")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if addr := strings.TrimSpace(cfg.Observability.MetricsAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return invalid("observability.metrics_addr %q: %v", addr, err)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return invalid("watch.debounce must be >= 0")
	}
	return nil
}
