package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/product"
)

type stubStrategy struct {
	name  string
	dims  *product.ExtractedDimensions
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(_ context.Context, _ *product.PageContent) (*product.ExtractedDimensions, error) {
	s.calls++
	return s.dims, s.err
}

func TestChain_FirstMatchWins(t *testing.T) {
	first := &stubStrategy{name: "first", dims: &product.ExtractedDimensions{LengthMM: 100, Source: "first"}}
	second := &stubStrategy{name: "second", dims: &product.ExtractedDimensions{LengthMM: 200, Source: "second"}}

	chain := NewChain(zap.NewNop(), first, second)
	dims, err := chain.Extract(context.Background(), &product.PageContent{})
	require.NoError(t, err)
	assert.Equal(t, "first", dims.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "chain must short-circuit on success")
}

func TestChain_FallsThroughOnNoMatch(t *testing.T) {
	first := &stubStrategy{name: "first", err: ErrNoMatch}
	second := &stubStrategy{name: "second", dims: &product.ExtractedDimensions{LengthMM: 200, Source: "second"}}

	chain := NewChain(zap.NewNop(), first, second)
	dims, err := chain.Extract(context.Background(), &product.PageContent{})
	require.NoError(t, err)
	assert.Equal(t, "second", dims.Source)
}

func TestChain_StrategyErrorDoesNotAbort(t *testing.T) {
	broken := &stubStrategy{name: "broken", err: errors.New("selector panic")}
	working := &stubStrategy{name: "working", dims: &product.ExtractedDimensions{LengthMM: 50, Source: "working"}}

	chain := NewChain(zap.NewNop(), broken, working)
	dims, err := chain.Extract(context.Background(), &product.PageContent{})
	require.NoError(t, err)
	assert.Equal(t, "working", dims.Source)
}

func TestChain_ExhaustionReturnsNotFound(t *testing.T) {
	first := &stubStrategy{name: "first", err: ErrNoMatch}
	second := &stubStrategy{name: "second", err: ErrNoMatch}

	chain := NewChain(zap.NewNop(), first, second)
	_, err := chain.Extract(context.Background(), &product.PageContent{})
	require.Error(t, err)
	assert.Equal(t, product.KindExtractionNotFound, product.KindOf(err))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestDefaultChain_OmitsAIWhenUnconfigured(t *testing.T) {
	chain := DefaultChain(nil, zap.NewNop())
	require.Len(t, chain.strategies, 2)
	assert.Equal(t, "structured", chain.strategies[0].Name())
	assert.Equal(t, "free_text", chain.strategies[1].Name())
}

func TestDefaultChain_StructuredBeatsFreeText(t *testing.T) {
	content := &product.PageContent{
		Description: "Roughly 99 x 99 x 99 cm according to reviews.",
		SpecRows: map[string]string{
			"Product Dimensions": "80 x 40 x 35 cm",
		},
	}

	chain := DefaultChain(nil, zap.NewNop())
	dims, err := chain.Extract(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, "structured", dims.Source)
	assert.Equal(t, 800.0, dims.LengthMM)
}
