package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies IMPORTCHECK_<SECTION>_<KEY> variables and
// returns the names of the ones that took effect. Unparseable values are
// ignored.
func ApplyEnvOverrides(cfg *Config) []string {
	var applied []string
	track := func(key string, ok bool) {
		if ok {
			applied = append(applied, key)
		}
	}

	track("IMPORTCHECK_ANALYSIS_WORKERS", setEnvInt(&cfg.Analysis.Workers, "IMPORTCHECK_ANALYSIS_WORKERS"))
	track("IMPORTCHECK_ANALYSIS_FIX", setEnvBool(&cfg.Analysis.Fix, "IMPORTCHECK_ANALYSIS_FIX"))

	track("IMPORTCHECK_PROVIDER_KIND", setEnvString(&cfg.Provider.Kind, "IMPORTCHECK_PROVIDER_KIND"))
	track("IMPORTCHECK_PROVIDER_PYTHON", setEnvString(&cfg.Provider.Python, "IMPORTCHECK_PROVIDER_PYTHON"))
	track("IMPORTCHECK_PROVIDER_RATE", setEnvFloat64(&cfg.Provider.Rate, "IMPORTCHECK_PROVIDER_RATE"))
	track("IMPORTCHECK_PROVIDER_PACKAGES_FILE", setEnvString(&cfg.Provider.PackagesFile, "IMPORTCHECK_PROVIDER_PACKAGES_FILE"))

	track("IMPORTCHECK_HISTORY_ENABLED", setEnvBool(&cfg.History.Enabled, "IMPORTCHECK_HISTORY_ENABLED"))
	track("IMPORTCHECK_HISTORY_PATH", setEnvString(&cfg.History.Path, "IMPORTCHECK_HISTORY_PATH"))

	track("IMPORTCHECK_OBSERVABILITY_METRICS_ADDR", setEnvString(&cfg.Observability.MetricsAddr, "IMPORTCHECK_OBSERVABILITY_METRICS_ADDR"))
	track("IMPORTCHECK_OBSERVABILITY_OTLP_ENDPOINT", setEnvString(&cfg.Observability.OTLPEndpoint, "IMPORTCHECK_OBSERVABILITY_OTLP_ENDPOINT"))

	track("IMPORTCHECK_WATCH_DEBOUNCE", setEnvDuration(&cfg.Watch.Debounce, "IMPORTCHECK_WATCH_DEBOUNCE"))
	return applied
}

func setEnvString(target *string, key string) bool {
	if val, ok := os.LookupEnv(key); ok {
		*target = val
		return true
	}
	return false
}

func setEnvInt(target *int, key string) bool {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
			return true
		}
	}
	return false
}

func setEnvBool(target *bool, key string) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			*target = b
			return true
		}
	}
	return false
}

func setEnvFloat64(target *float64, key string) bool {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*target = f
			return true
		}
	}
	return false
}

func setEnvDuration(target *time.Duration, key string) bool {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
			return true
		}
	}
	return false
}
