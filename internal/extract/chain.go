// Package extract pulls product dimensions out of parsed page content
// using an ordered strategy chain with short-circuit on first success.
package extract

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/metrics"
	"github.com/arview/product-crawler/internal/product"
)

// ErrNoMatch is returned by a strategy that found nothing. The chain
// moves on to the next strategy.
var ErrNoMatch = errors.New("no dimensions matched")

// Strategy is one attempt at extracting dimensions.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, content *product.PageContent) (*product.ExtractedDimensions, error)
}

// Chain runs strategies in order until one yields a result. Individual
// strategy failures are swallowed; only exhaustion of the whole chain
// surfaces as an error.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a Chain over the given strategies.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, logger: logger}
}

// DefaultChain wires the standard strategy order: structured rows,
// free-text patterns, then the AI fallback (when a model client is
// configured).
func DefaultChain(ai *AIStrategy, logger *zap.Logger) *Chain {
	strategies := []Strategy{StructuredStrategy{}, FreeTextStrategy{}}
	if ai != nil {
		strategies = append(strategies, ai)
	}
	return NewChain(logger, strategies...)
}

// Extract runs the chain. Returns a KindExtractionNotFound error when
// every strategy comes up empty.
func (c *Chain) Extract(ctx context.Context, content *product.PageContent) (*product.ExtractedDimensions, error) {
	for _, strategy := range c.strategies {
		dims, err := strategy.Extract(ctx, content)
		if err == nil && dims != nil {
			metrics.ExtractionsTotal.WithLabelValues(strategy.Name()).Inc()
			c.logger.Debug("dimensions extracted",
				zap.String("strategy", strategy.Name()),
				zap.Float64("confidence", dims.Confidence),
			)
			return dims, nil
		}
		if err != nil && !errors.Is(err, ErrNoMatch) {
			// A broken strategy must not take the chain down.
			c.logger.Warn("extraction strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.Error(err),
			)
		}
	}
	metrics.ExtractionsTotal.WithLabelValues("not_found").Inc()
	return nil, product.NewError(product.KindExtractionNotFound, "all extraction strategies exhausted", nil)
}
