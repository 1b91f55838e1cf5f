// Package drivers holds the ExternalModuleProvider implementations used to
// decide imports that do not resolve inside the project.
package drivers

import (
	"fmt"

	domainerrors "importcheck/internal/core/errors"
	"importcheck/internal/engine/resolver"
	"importcheck/internal/shared/diag"
	"importcheck/internal/shared/util"
)

const (
	KindRuntime  = "runtime"
	KindManifest = "manifest"
	KindChain    = "chain"
)

// Provider is an ExternalModuleProvider that owns resources.
type Provider interface {
	resolver.ExternalModuleProvider
	Name() string
	Close() error
}

type Options struct {
	Kind         string
	Python       string
	Rate         float64
	Burst        int
	CacheSize    int
	PackagesFile string
	SitePackages []string
	Sink         *diag.Sink
}

// New builds the provider named by opts.Kind wrapped in a result cache.
// The chain kind tries the manifest first and falls back to the runtime.
func New(opts Options) (Provider, error) {
	var p Provider
	switch opts.Kind {
	case KindRuntime, "":
		p = newRuntime(opts)
	case KindManifest:
		m, err := newManifest(opts)
		if err != nil {
			return nil, err
		}
		p = m
	case KindChain:
		m, err := newManifest(opts)
		if err != nil {
			return nil, err
		}
		p = NewChainProvider(m, newRuntime(opts))
	default:
		return nil, domainerrors.AddContext(
			domainerrors.New(domainerrors.CodeNotSupported, fmt.Sprintf("unknown provider kind %q", opts.Kind)),
			domainerrors.CtxProvider, opts.Kind)
	}
	if opts.CacheSize > 0 {
		p = NewCachingProvider(p, opts.CacheSize)
	}
	opts.Sink.Debug("external module provider ready", "kind", p.Name(), "cache", opts.CacheSize)
	return p, nil
}

func newRuntime(opts Options) *RuntimeProvider {
	return NewRuntimeProvider(opts.Python, util.NewLimiter(opts.Rate, opts.Burst), opts.Sink)
}

func newManifest(opts Options) (*ManifestProvider, error) {
	var packages []string
	if opts.PackagesFile != "" {
		var err error
		if packages, err = LoadPackagesFile(opts.PackagesFile); err != nil {
			return nil, err
		}
	}
	return NewManifestProvider(packages, opts.SitePackages), nil
}
