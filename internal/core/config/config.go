package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	domainerrors "importcheck/internal/core/errors"
)

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "importcheck.toml"

type Config struct {
	Analysis      Analysis      `toml:"analysis"`
	Exclude       Exclude       `toml:"exclude"`
	Provider      Provider      `toml:"provider"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
	Watch         Watch         `toml:"watch"`
}

type Analysis struct {
	SourceExtension string `toml:"source_extension"`
	PackageInitFile string `toml:"package_init_file"`
	Workers         int    `toml:"workers"`
	Fix             bool   `toml:"fix"`
}

// Exclude entries are glob patterns. Dirs match directory base names, files
// match either the base name or the root-relative path.
type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Provider struct {
	Kind         string   `toml:"kind"`
	Python       string   `toml:"python"`
	Rate         float64  `toml:"rate"`
	Burst        int      `toml:"burst"`
	CacheSize    int      `toml:"cache_size"`
	PackagesFile string   `toml:"packages_file"`
	SitePackages []string `toml:"site_packages"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

// DefaultExcludedDirs are skipped during every scan in addition to any
// configured patterns.
var DefaultExcludedDirs = []string{
	"__pycache__",
	".git",
	".gitlab",
	".github",
	".idea",
	".venv",
	"venv",
	"env",
	".env",
	"node_modules",
	"build",
	"dist",
	".eggs",
	"*.egg-info",
	"alembic",
	"migrations",
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load decodes path, fills defaults and validates. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeNotFound, "config file not found"),
				domainerrors.CtxPath, path)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read config")
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, domainerrors.AddContext(err, domainerrors.CtxPath, path)
	}
	return cfg, nil
}

func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, domainerrors.New(domainerrors.CodeValidationError, "unknown config keys: "+strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Analysis.SourceExtension) == "" {
		cfg.Analysis.SourceExtension = ".py"
	}
	if !strings.HasPrefix(cfg.Analysis.SourceExtension, ".") {
		cfg.Analysis.SourceExtension = "." + cfg.Analysis.SourceExtension
	}
	if strings.TrimSpace(cfg.Analysis.PackageInitFile) == "" {
		cfg.Analysis.PackageInitFile = "__init__.py"
	}

	if strings.TrimSpace(cfg.Provider.Kind) == "" {
		cfg.Provider.Kind = "runtime"
	}
	cfg.Provider.Kind = strings.ToLower(strings.TrimSpace(cfg.Provider.Kind))
	if strings.TrimSpace(cfg.Provider.Python) == "" {
		cfg.Provider.Python = "python3"
	}
	if cfg.Provider.Rate == 0 {
		cfg.Provider.Rate = 200
	}
	if cfg.Provider.Burst == 0 {
		cfg.Provider.Burst = 20
	}
	if cfg.Provider.CacheSize == 0 {
		cfg.Provider.CacheSize = 4096
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".importcheck/history.db"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

// ExcludedDirs returns the default directory patterns followed by the
// configured ones.
func (c *Config) ExcludedDirs() []string {
	out := make([]string, 0, len(DefaultExcludedDirs)+len(c.Exclude.Dirs))
	out = append(out, DefaultExcludedDirs...)
	return append(out, c.Exclude.Dirs...)
}
