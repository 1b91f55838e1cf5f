package drivers

import (
	"context"
	"errors"

	"importcheck/internal/engine/parser"
	"importcheck/internal/engine/resolver"
)

// ChainProvider consults providers in order. The first RESOLVED answer
// wins; otherwise the last provider's answer is returned.
type ChainProvider struct {
	providers []Provider
}

func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

func (c *ChainProvider) Name() string { return KindChain }

func (c *ChainProvider) Validate(ctx context.Context, path parser.DottedPath, sourceFile string) (resolver.ExternalResult, error) {
	last := resolver.ExternalResult{Status: resolver.StatusOtherError, Detail: resolver.ImportErrorMessage(path, "no providers configured")}
	var lastErr error
	for _, p := range c.providers {
		res, err := p.Validate(ctx, path, sourceFile)
		if err != nil {
			if ctx.Err() != nil {
				return resolver.ExternalResult{}, ctx.Err()
			}
			last, lastErr = resolver.ExternalResult{}, err
			continue
		}
		if res.Status == resolver.StatusResolved {
			return res, nil
		}
		last, lastErr = res, nil
	}
	return last, lastErr
}

func (c *ChainProvider) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
