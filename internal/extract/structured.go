package extract

import (
	"context"
	"strings"

	"github.com/arview/product-crawler/internal/product"
)

// Labels that mark a dimension row in a spec table or bullet list.
// English plus German, which covers the IKEA catalog and most EU
// storefronts.
var dimensionLabels = []string{
	"product dimensions",
	"item dimensions",
	"package dimensions",
	"assembled dimensions",
	"overall dimensions",
	"dimensions",
	"measurements",
	"size",
	"abmessungen",
	"produktmaße",
	"maße",
	"größe",
}

// Structured-row matches earn more trust than free-text scans because
// the label disambiguates the numbers.
const (
	confidenceLabeledUnit     = 0.95
	confidenceLabeledInferred = 0.8
)

// StructuredStrategy scans labeled spec rows and bullets for dimension
// values.
type StructuredStrategy struct{}

// Name identifies the strategy in extraction results.
func (StructuredStrategy) Name() string { return "structured" }

// Extract looks for a dimension-labeled row first, then for bullets
// that start with a dimension label.
func (s StructuredStrategy) Extract(_ context.Context, content *product.PageContent) (*product.ExtractedDimensions, error) {
	for label, value := range content.SpecRows {
		if !isDimensionLabel(label) {
			continue
		}
		if dims, unit, ok := parseTriple(value); ok {
			return labeledDimensions(dims, unit, s.Name()), nil
		}
	}

	for _, bullet := range content.Bullets {
		lower := strings.ToLower(bullet)
		for _, label := range dimensionLabels {
			if strings.Contains(lower, label) {
				if dims, unit, ok := parseTriple(bullet); ok {
					return labeledDimensions(dims, unit, s.Name()), nil
				}
				break
			}
		}
	}

	return nil, ErrNoMatch
}

func isDimensionLabel(label string) bool {
	lower := strings.ToLower(strings.TrimSpace(label))
	for _, known := range dimensionLabels {
		if strings.Contains(lower, known) {
			return true
		}
	}
	return false
}

func labeledDimensions(dims [3]float64, unit, source string) *product.ExtractedDimensions {
	d := dimensionsFromTriple(dims, unit, source)
	if unit == "" {
		d.Confidence = confidenceLabeledInferred
	} else {
		d.Confidence = confidenceLabeledUnit
	}
	return d
}
