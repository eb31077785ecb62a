package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/breaker"
	"github.com/arview/product-crawler/internal/product"
)

// aiCircuit names the breaker guarding model calls.
const aiCircuit = "ai-extract"

// aiConfidence is deliberately below the deterministic strategies: the
// model reply cannot be traced back to page text.
const aiConfidence = 0.6

// maxPromptDescription bounds how much description text is sent to the
// model.
const maxPromptDescription = 600

// ModelClient is the narrow interface to the external text model.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// replyPattern is the only reply shape the model is trusted to produce:
// "<L> x <W> x <H> <unit>".
var replyPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*([a-zA-Z]+)\s*\.?\s*$`)

// noDimensionsReply is the literal negative answer requested from the
// model.
const noDimensionsReply = "no dimensions found"

// AIStrategy asks an external text model for dimensions when the
// deterministic strategies found nothing. The model is untrusted: any
// reply outside the expected grammar counts as no match, never as a
// pipeline failure.
type AIStrategy struct {
	client   ModelClient
	breakers *breaker.Registry
	logger   *zap.Logger
}

// NewAIStrategy builds the fallback strategy. Returns nil when no model
// client is configured so the chain simply omits it.
func NewAIStrategy(client ModelClient, breakers *breaker.Registry, logger *zap.Logger) *AIStrategy {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIStrategy{client: client, breakers: breakers, logger: logger}
}

// Name identifies the strategy in extraction results.
func (s *AIStrategy) Name() string { return "ai" }

// Extract prompts the model and parses its reply against the strict
// grammar.
func (s *AIStrategy) Extract(ctx context.Context, content *product.PageContent) (*product.ExtractedDimensions, error) {
	if content.Title == "" && content.Description == "" {
		return nil, ErrNoMatch
	}

	prompt := buildPrompt(content)
	circuit := s.breakers.Get(aiCircuit)
	reply, err := breaker.Do(ctx, circuit, func(ctx context.Context) (string, error) {
		return s.client.Complete(ctx, prompt)
	}, nil)
	if err != nil {
		// A failing or paused model service degrades to "not found".
		s.logger.Warn("ai extraction unavailable", zap.Error(err))
		return nil, ErrNoMatch
	}

	return parseModelReply(reply)
}

func buildPrompt(content *product.PageContent) string {
	var b strings.Builder
	b.WriteString("Extract the physical dimensions of this product.\n")
	fmt.Fprintf(&b, "Title: %s\n", content.Title)
	if content.Brand != "" {
		fmt.Fprintf(&b, "Brand: %s\n", content.Brand)
	}
	if content.Description != "" {
		desc := content.Description
		if len(desc) > maxPromptDescription {
			desc = desc[:maxPromptDescription]
		}
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	b.WriteString(`Reply with exactly "<length> x <width> x <height> <unit>" (for example "120 x 60 x 75 cm") or exactly "No dimensions found".`)
	return b.String()
}

// parseModelReply accepts only the agreed grammar. Anything else is a
// non-match.
func parseModelReply(reply string) (*product.ExtractedDimensions, error) {
	trimmed := strings.TrimSpace(reply)
	if strings.EqualFold(strings.TrimSuffix(trimmed, "."), noDimensionsReply) {
		return nil, ErrNoMatch
	}

	m := replyPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, ErrNoMatch
	}

	var dims [3]float64
	for i, raw := range m[1:4] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, ErrNoMatch
		}
		dims[i] = v
	}
	unit := strings.ToLower(m[4])
	if _, known := UnitMultiplier(unit); !known {
		// The model invented a unit; the cm default would silently
		// distort AI output, so treat it as no match instead.
		return nil, ErrNoMatch
	}

	return &product.ExtractedDimensions{
		LengthMM:   ToMillimeters(dims[0], unit),
		WidthMM:    ToMillimeters(dims[1], unit),
		HeightMM:   ToMillimeters(dims[2], unit),
		Unit:       unit,
		Confidence: aiConfidence,
		Source:     "ai",
	}, nil
}
