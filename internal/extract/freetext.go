package extract

import (
	"context"
	"regexp"
	"strconv"

	"github.com/arview/product-crawler/internal/product"
)

// Confidence levels for pattern matches.
const (
	confidenceUnitPresent  = 0.9
	confidenceUnitInferred = 0.7
)

// inferredUnit is applied when a triple matches without an explicit
// unit. Centimeters are by far the most common unlabeled unit on
// product pages.
const inferredUnit = "cm"

const number = `(\d+(?:[.,]\d+)?)`

// Numeric patterns tried in priority order; the first that yields three
// numbers wins.
var freeTextPatterns = []*regexp.Regexp{
	// "25.9 x 13 x 6.1 cm"
	regexp.MustCompile(`(?i)` + number + `\s*[x×*]\s*` + number + `\s*[x×*]\s*` + number + `\s*(mm|cm|in|inch|inches)?\b`),
	// "length: 120, width: 60, height: 75 cm" (labels in any of the
	// supported languages)
	regexp.MustCompile(`(?i)(?:length|länge)\s*:?\s*` + number + `\s*\D{0,12}?(?:width|breite)\s*:?\s*` + number + `\s*\D{0,12}?(?:height|höhe)\s*:?\s*` + number + `\s*(mm|cm|in|inch|inches)?\b`),
	// "120cm x 60cm x 75cm" (per-number units)
	regexp.MustCompile(`(?i)` + number + `\s*(mm|cm|in|inch|inches)\s*[x×*]\s*` + number + `\s*(?:mm|cm|in|inch|inches)?\s*[x×*]\s*` + number + `\s*(?:mm|cm|in|inch|inches)?\b`),
}

// parseTriple scans text for a three-number dimension expression.
// Returns the numbers in match order, the detected unit ("" when the
// unit had to be inferred) and whether anything matched.
func parseTriple(text string) (dims [3]float64, unit string, ok bool) {
	for i, pattern := range freeTextPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var nums [3]float64
		var parsed bool
		switch i {
		case 2:
			// Per-number unit variant: groups 1,3,4 are numbers,
			// group 2 is the leading unit.
			nums, parsed = parseNumbers(m[1], m[3], m[4])
			unit = m[2]
		default:
			nums, parsed = parseNumbers(m[1], m[2], m[3])
			unit = m[4]
		}
		if !parsed {
			continue
		}
		return nums, unit, true
	}
	return dims, "", false
}

func parseNumbers(a, b, c string) ([3]float64, bool) {
	var out [3]float64
	for i, s := range []string{a, b, c} {
		v, err := strconv.ParseFloat(normalizeDecimal(s), 64)
		if err != nil || v <= 0 {
			return out, false
		}
		out[i] = v
	}
	return out, true
}

func normalizeDecimal(s string) string {
	// European decimal commas appear in German spec tables.
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out[i] = '.'
		} else {
			out[i] = s[i]
		}
	}
	return string(out)
}

// dimensionsFromTriple converts a matched triple into the canonical
// millimeter representation.
func dimensionsFromTriple(dims [3]float64, unit, source string) *product.ExtractedDimensions {
	confidence := confidenceUnitPresent
	recordedUnit := unit
	if unit == "" {
		confidence = confidenceUnitInferred
		recordedUnit = inferredUnit
	}
	return &product.ExtractedDimensions{
		LengthMM:   ToMillimeters(dims[0], recordedUnit),
		WidthMM:    ToMillimeters(dims[1], recordedUnit),
		HeightMM:   ToMillimeters(dims[2], recordedUnit),
		Unit:       recordedUnit,
		Confidence: confidence,
		Source:     source,
	}
}

// FreeTextStrategy scans unstructured description text for dimension
// expressions.
type FreeTextStrategy struct{}

// Name identifies the strategy in extraction results.
func (FreeTextStrategy) Name() string { return "free_text" }

// Extract applies the numeric patterns to the page's description and
// raw text.
func (s FreeTextStrategy) Extract(_ context.Context, content *product.PageContent) (*product.ExtractedDimensions, error) {
	for _, text := range []string{content.Description, content.Text} {
		if text == "" {
			continue
		}
		if dims, unit, ok := parseTriple(text); ok {
			return dimensionsFromTriple(dims, unit, s.Name()), nil
		}
	}
	return nil, ErrNoMatch
}
