// Package categorize scores products for AR size visualization:
// whether they are physical goods worth showing at scale, and how
// likely their pages are to carry usable dimensions. All scoring is
// deterministic table lookups, no network calls.
package categorize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/product"
)

// Weights of the size-relevance blend. They sum to 1 so the result is
// naturally in [0,1] before clamping.
const (
	weightPlatform    = 0.3
	weightProductType = 0.4
	weightURLPattern  = 0.2
	weightData        = 0.1
)

// Product types in decreasing order of physical-size relevance.
const (
	TypeFurniture   = "furniture"
	TypeAppliance   = "appliance"
	TypeHomeDecor   = "home_decor"
	TypeElectronics = "electronics"
	TypeToys        = "toys"
	TypeGeneral     = "general"
	TypeClothing    = "clothing"
	TypeBooks       = "books"
)

var platformScores = map[product.Platform]float64{
	product.PlatformIkea:    0.95,
	product.PlatformAmazon:  0.7,
	product.PlatformWalmart: 0.6,
	product.PlatformTarget:  0.6,
	product.PlatformGeneric: 0.4,
}

var productTypeScores = map[string]float64{
	TypeFurniture:   0.95,
	TypeAppliance:   0.9,
	TypeHomeDecor:   0.8,
	TypeElectronics: 0.7,
	TypeToys:        0.6,
	TypeGeneral:     0.5,
	TypeClothing:    0.3,
	TypeBooks:       0.1,
}

// typeKeywords maps category or URL fragments to product types. Order
// matters: earlier entries win because more specific categories tend
// to appear first.
var typeKeywords = []struct {
	productType string
	keywords    []string
}{
	{TypeFurniture, []string{"furniture", "desk", "table", "chair", "sofa", "couch", "wardrobe", "shelf", "shelving", "bookcase", "cabinet", "dresser", "bed-frame", "bed frame", "nightstand", "bench"}},
	{TypeAppliance, []string{"appliance", "refrigerator", "fridge", "dishwasher", "washer", "dryer", "microwave", "oven", "freezer", "vacuum"}},
	{TypeHomeDecor, []string{"decor", "rug", "lamp", "mirror", "vase", "curtain", "lighting", "planter", "artwork", "wall-art", "wall art"}},
	{TypeElectronics, []string{"electronics", "monitor", "television", "tv", "speaker", "laptop", "tablet", "console", "printer", "projector"}},
	{TypeToys, []string{"toy", "toys", "lego", "playset", "games", "puzzle"}},
	{TypeClothing, []string{"clothing", "apparel", "shirt", "dress", "shoes", "jacket", "pants", "fashion", "sweater"}},
	{TypeBooks, []string{"book", "books", "paperback", "hardcover", "novel"}},
}

// disqualifyingKeywords mark products that make no sense to place in a
// room at physical scale.
var disqualifyingKeywords = []string{
	// digital goods
	"ebook", "e-book", "kindle-edition", "kindle edition", "digital-download", "digital download", "digital-code", "software", "app-store", "mp3", "audiobook", "streaming",
	// services
	"subscription", "membership", "warranty", "installation-service", "installation service", "insurance", "service-plan", "service plan",
	// gift cards and vouchers
	"gift-card", "gift card", "giftcard", "voucher", "egift",
	// books and media
	"dvd", "blu-ray", "vinyl", "cd-album",
}

// urlSizePatterns are URL fragments that correlate with size-relevant
// listings.
var urlSizePatterns = []struct {
	fragment string
	score    float64
}{
	{"furniture", 0.9},
	{"appliance", 0.9},
	{"desk", 0.85},
	{"sofa", 0.85},
	{"table", 0.8},
	{"decor", 0.7},
	{"outdoor", 0.7},
	{"storage", 0.7},
	{"electronics", 0.6},
}

const defaultURLScore = 0.5

// Categorizer assigns AR suitability, product type and the size
// relevance score to freshly extracted records.
type Categorizer struct {
	logger *zap.Logger
}

// New builds a Categorizer.
func New(logger *zap.Logger) *Categorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Categorizer{logger: logger}
}

// Apply fills the categorization fields of rec in place.
func (c *Categorizer) Apply(rec *product.Record) {
	rec.ProductType = DetectProductType(rec.Category, rec.SourceURL)
	rec.ARSuitable = IsARSuitable(rec)
	rec.SizeRelevance = SizeRelevance(rec)

	c.logger.Debug("record categorized",
		zap.String("url", rec.SourceURL),
		zap.String("product_type", rec.ProductType),
		zap.Bool("ar_suitable", rec.ARSuitable),
		zap.Float64("size_relevance", rec.SizeRelevance),
	)
}

// IsARSuitable reports whether the record is a physical good worth
// rendering at scale. Disqualifying keyword hits in the URL or
// category text win over everything else; otherwise physical goods are
// assumed.
func IsARSuitable(rec *product.Record) bool {
	haystack := strings.ToLower(rec.SourceURL + " " + rec.Category)
	for _, kw := range disqualifyingKeywords {
		if strings.Contains(haystack, kw) {
			return false
		}
	}
	return true
}

// DetectProductType classifies from category text first, then URL
// keywords, defaulting to general.
func DetectProductType(category, sourceURL string) string {
	if t, ok := matchType(strings.ToLower(category)); ok {
		return t
	}
	if t, ok := matchType(strings.ToLower(sourceURL)); ok {
		return t
	}
	return TypeGeneral
}

func matchType(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, entry := range typeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.productType, true
			}
		}
	}
	return "", false
}

// SizeRelevance blends platform, product type, URL shape and available
// data into one score.
func SizeRelevance(rec *product.Record) float64 {
	score := weightPlatform*platformScore(rec.Platform) +
		weightProductType*productTypeScore(rec.ProductType) +
		weightURLPattern*urlPatternScore(rec.SourceURL) +
		weightData*dataScore(rec)
	return clamp01(score)
}

func platformScore(p product.Platform) float64 {
	if s, ok := platformScores[p]; ok {
		return s
	}
	return platformScores[product.PlatformGeneric]
}

func productTypeScore(productType string) float64 {
	if s, ok := productTypeScores[productType]; ok {
		return s
	}
	return productTypeScores[TypeGeneral]
}

func urlPatternScore(sourceURL string) float64 {
	lower := strings.ToLower(sourceURL)
	best := defaultURLScore
	for _, p := range urlSizePatterns {
		if strings.Contains(lower, p.fragment) && p.score > best {
			best = p.score
		}
	}
	return best
}

// dataScore rewards records whose pages already surfaced physical
// evidence: extracted dimensions are the strongest signal, spec-table
// materials a weaker one.
func dataScore(rec *product.Record) float64 {
	switch {
	case rec.Dimensions != nil:
		return 1.0
	case len(rec.Materials) > 0:
		return 0.6
	default:
		return 0.3
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
