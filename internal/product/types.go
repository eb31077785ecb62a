// Package product defines core types shared across pipeline subsystems.
package product

import (
	"fmt"
	"net/http"
	"time"
)

// Platform identifies the e-commerce site a URL belongs to.
type Platform string

// Supported platforms. Unmatched hostnames normalize to PlatformGeneric;
// PlatformUnknown is reserved for records built before detection ran.
const (
	PlatformAmazon  Platform = "amazon"
	PlatformIkea    Platform = "ikea"
	PlatformWalmart Platform = "walmart"
	PlatformTarget  Platform = "target"
	PlatformGeneric Platform = "generic"
	PlatformUnknown Platform = "unknown"
)

// NormalizedURL is the canonical form of a raw product URL.
type NormalizedURL struct {
	Raw       string   `json:"raw"`
	Canonical string   `json:"canonical"`
	Platform  Platform `json:"platform"`
	ProductID string   `json:"product_id,omitempty"`
}

// CacheKey returns the stable cache key for this URL.
func (n NormalizedURL) CacheKey() string {
	return fmt.Sprintf("%s:%s", n.Platform, n.Canonical)
}

// ExtractedDimensions holds product dimensions normalized to millimeters.
// Unit records the original detected unit for audit.
type ExtractedDimensions struct {
	LengthMM   float64 `json:"length_mm"`
	WidthMM    float64 `json:"width_mm"`
	HeightMM   float64 `json:"height_mm"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source_strategy"`
}

// ValidationStatus is the outcome of validating a record.
type ValidationStatus string

// Validation outcomes attached to a record by the validator.
const (
	ValidationPassed   ValidationStatus = "passed"
	ValidationPartial  ValidationStatus = "partial"
	ValidationRejected ValidationStatus = "rejected"
)

// Record is the fully-formed product returned by the pipeline.
// It is created once per successful crawl; the validator is the only
// mutator (status, warnings, quality fields). A changed product is a new
// record under a new cache entry.
type Record struct {
	Title         string               `json:"title"`
	Brand         string               `json:"brand,omitempty"`
	Category      string               `json:"category,omitempty"`
	Price         string               `json:"price,omitempty"`
	Description   string               `json:"description,omitempty"`
	Materials     []string             `json:"materials,omitempty"`
	Colors        []string             `json:"colors,omitempty"`
	Images        []string             `json:"images,omitempty"`
	Dimensions    *ExtractedDimensions `json:"dimensions,omitempty"`
	Platform      Platform             `json:"platform"`
	SourceURL     string               `json:"source_url"`
	ProductType   string               `json:"product_type"`
	ARSuitable    bool                 `json:"ar_suitable"`
	ARReady       bool                 `json:"ar_ready"`
	SizeRelevance float64              `json:"size_relevance_score"`
	QualityScore  float64              `json:"quality_score"`
	QualityTier   string               `json:"quality_tier,omitempty"`
	Status        ValidationStatus     `json:"validation_status"`
	Warnings      []string             `json:"warnings,omitempty"`
	FetchedAt     time.Time            `json:"fetched_at"`
	UsedHeadless  bool                 `json:"used_headless,omitempty"`
}

// Page is the raw result of fetching a URL.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
