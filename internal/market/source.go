// Package market supplies price data through the QuoteSource capability.
// Providers are tried in priority order; when every provider fails the chain
// degrades to the last known good quote, flagged as fallback data.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/ratelimit"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// QuoteSource returns the latest quote for a symbol.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (types.Quote, error)
}

// ChainSource tries sources in priority order, remembering the last good
// quote per symbol for fallback.
type ChainSource struct {
	sources []QuoteSource
	logger  *logger.Logger

	mu        sync.RWMutex
	lastKnown map[string]types.Quote
}

// NewChainSource builds a chain over the given sources, highest priority
// first.
func NewChainSource(log *logger.Logger, sources ...QuoteSource) *ChainSource {
	return &ChainSource{
		sources:   sources,
		logger:    log,
		lastKnown: make(map[string]types.Quote),
	}
}

// GetQuote implements QuoteSource. On total failure it returns the last
// known quote with ErrorFlag set and Source "fallback"; with no history it
// returns the last provider error.
func (c *ChainSource) GetQuote(ctx context.Context, symbol string) (types.Quote, error) {
	var lastErr error

	for _, source := range c.sources {
		quote, err := source.GetQuote(ctx, symbol)
		if err != nil {
			lastErr = err

			c.logger.Warn("Quote provider failed, trying next",
				zap.String("symbol", symbol),
				zap.Error(err),
			)

			continue
		}

		c.mu.Lock()
		c.lastKnown[symbol] = quote
		c.mu.Unlock()

		return quote, nil
	}

	c.mu.RLock()
	fallback, ok := c.lastKnown[symbol]
	c.mu.RUnlock()

	if ok {
		fallback.Source = "fallback"
		fallback.ErrorFlag = true

		c.logger.Warn("All quote providers failed, serving last known good",
			zap.String("symbol", symbol),
			zap.Time("as_of", fallback.Timestamp),
		)

		return fallback, nil
	}

	if lastErr == nil {
		lastErr = errors.Newf(errors.ErrCodeQuoteUnavailable, "no quote providers configured")
	}

	return types.Quote{}, errors.Wrapf(errors.ErrCodeQuoteUnavailable, lastErr,
		"no quote available for %s", symbol)
}

// RateLimitedSource paces calls to an underlying source.
type RateLimitedSource struct {
	inner   QuoteSource
	limiter *ratelimit.Limiter
}

// NewRateLimitedSource wraps a source with a token bucket allowing one call
// per minInterval sustained.
func NewRateLimitedSource(inner QuoteSource, minInterval time.Duration) *RateLimitedSource {
	return &RateLimitedSource{
		inner:   inner,
		limiter: ratelimit.NewLimiter(1, minInterval),
	}
}

// GetQuote implements QuoteSource.
func (r *RateLimitedSource) GetQuote(ctx context.Context, symbol string) (types.Quote, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return types.Quote{}, errors.Wrap(errors.ErrCodeQuoteUnavailable, "rate limiter interrupted", err)
	}

	return r.inner.GetQuote(ctx, symbol)
}
