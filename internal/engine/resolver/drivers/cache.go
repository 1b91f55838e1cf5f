package drivers

import (
	"context"
	"strings"

	"importcheck/internal/engine/parser"
	"importcheck/internal/engine/resolver"
	"importcheck/internal/shared/observability"
	"importcheck/internal/shared/util"
)

type cachedResult struct {
	result resolver.ExternalResult
	file   string
}

// CachingProvider memoises another provider's answers by dotted path.
// Errors are not cached. A cached detail naming a different importing file
// is rewritten to name the caller's file.
type CachingProvider struct {
	inner Provider
	cache *util.LRUCache[parser.DottedPath, cachedResult]
}

func NewCachingProvider(inner Provider, capacity int) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		cache: util.NewLRUCache[parser.DottedPath, cachedResult](capacity),
	}
}

func (c *CachingProvider) Name() string { return c.inner.Name() }

func (c *CachingProvider) Validate(ctx context.Context, path parser.DottedPath, sourceFile string) (resolver.ExternalResult, error) {
	if hit, ok := c.cache.Get(path); ok {
		observability.ProviderCacheHitsTotal.Inc()
		res := hit.result
		if res.Detail != "" && hit.file != sourceFile && hit.file != "" {
			res.Detail = strings.Replace(res.Detail, " in "+hit.file, " in "+sourceFile, 1)
		}
		return res, nil
	}
	res, err := c.inner.Validate(ctx, path, sourceFile)
	if err != nil {
		return res, err
	}
	c.cache.Put(path, cachedResult{result: res, file: sourceFile})
	return res, nil
}

// Stats reports cache hits and misses.
func (c *CachingProvider) Stats() (hits, misses uint64) { return c.cache.Stats() }

func (c *CachingProvider) Close() error {
	c.cache.Clear()
	return c.inner.Close()
}
