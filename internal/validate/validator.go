// Package validate runs records through a fixed set of quality checks
// before they are handed back to callers. Strict validation demands
// every check passes; partial validation converts failures into
// warnings so incomplete records still flow downstream.
package validate

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/metrics"
	"github.com/arview/product-crawler/internal/product"
)

// Physical bounds for AR placement. Anything outside is a parsing
// artifact, not a product.
const (
	minAxisMM     = 1.0
	maxAxisMM     = 10000.0
	maxAspectRatio = 50.0
)

// Image quality thresholds.
const (
	imageCountCeiling = 3.0
	hiResBonusWeight  = 0.3
	minImageScore     = 0.5
)

// AR compatibility weights and threshold.
const (
	arWeightDimensions = 0.4
	arWeightImages     = 0.3
	arWeightType       = 0.2
	arWeightMetadata   = 0.1
	minARScore         = 0.7
)

// maxWarningsForAR is the most warnings a partial record can carry and
// still be flagged ready for AR rendering.
const maxWarningsForAR = 2

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// hiResMarkers flag URLs that point at high-resolution assets.
var hiResMarkers = []string{"hires", "hi-res", "highres", "high-res", "2000x", "1500x", "_sl1500_", "_ac_sl"}

// favorableTypes are product types where physical size matters enough
// for AR placement to be useful.
var favorableTypes = map[string]struct{}{
	"furniture":   {},
	"appliance":   {},
	"home_decor":  {},
	"electronics": {},
	"toys":        {},
}

// Quality tiers keyed by descending score threshold.
var qualityTiers = []struct {
	threshold float64
	tier      string
}{
	{0.9, "excellent"},
	{0.8, "very_good"},
	{0.7, "good"},
	{0.6, "fair"},
	{0.5, "poor"},
	{0, "very_poor"},
}

// Validator aggregates the individual checks.
type Validator struct {
	logger *zap.Logger
}

// New builds a Validator.
func New(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// Validate runs all checks strictly: every one must pass for the
// record to be marked Passed. The first failure is returned as a
// KindValidationFailed error and the record is left unmodified except
// for its status.
func (v *Validator) Validate(rec *product.Record) error {
	checks := []struct {
		name string
		run  func(*product.Record) error
	}{
		{"dimensions", checkDimensions},
		{"images", checkImages},
		{"metadata", checkMetadata},
		{"ar_compatibility", checkARCompatibility},
	}
	for _, check := range checks {
		if err := check.run(rec); err != nil {
			rec.Status = product.ValidationRejected
			metrics.ValidationsTotal.WithLabelValues(string(product.ValidationRejected)).Inc()
			v.logger.Debug("strict validation failed",
				zap.String("url", rec.SourceURL),
				zap.String("check", check.name),
				zap.Error(err),
			)
			return product.NewError(product.KindValidationFailed,
				fmt.Sprintf("%s check failed: %v", check.name, err), err)
		}
	}

	trimOptionalMetadata(rec)
	rec.QualityScore = qualityScore(rec)
	rec.QualityTier = qualityTier(rec.QualityScore)
	rec.Status = product.ValidationPassed
	rec.ARReady = true
	metrics.ValidationsTotal.WithLabelValues(string(product.ValidationPassed)).Inc()
	return nil
}

// ValidatePartial accepts any record with a non-empty title. Check
// failures become warnings instead of errors; the record is AR-ready
// only while the warning count stays low.
func (v *Validator) ValidatePartial(rec *product.Record) error {
	if strings.TrimSpace(rec.Title) == "" {
		rec.Status = product.ValidationRejected
		metrics.ValidationsTotal.WithLabelValues(string(product.ValidationRejected)).Inc()
		return product.NewError(product.KindValidationFailed, "record has no title", nil)
	}

	trimOptionalMetadata(rec)

	if err := checkDimensions(rec); err != nil {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("missing dimensions: %v", err))
	}
	if err := checkImages(rec); err != nil {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("missing images: %v", err))
	}
	if err := checkMetadata(rec); err != nil {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("incomplete metadata: %v", err))
	}

	rec.QualityScore = qualityScore(rec)
	rec.QualityTier = qualityTier(rec.QualityScore)
	rec.Status = product.ValidationPartial
	rec.ARReady = len(rec.Warnings) <= maxWarningsForAR
	metrics.ValidationsTotal.WithLabelValues(string(product.ValidationPartial)).Inc()

	v.logger.Debug("partial validation",
		zap.String("url", rec.SourceURL),
		zap.Int("warnings", len(rec.Warnings)),
		zap.Bool("ar_ready", rec.ARReady),
	)
	return nil
}

// checkDimensions verifies all three axes exist, sit inside physical
// bounds and have plausible proportions.
func checkDimensions(rec *product.Record) error {
	d := rec.Dimensions
	if d == nil {
		return fmt.Errorf("no dimensions extracted")
	}
	axes := []struct {
		name  string
		value float64
	}{
		{"length", d.LengthMM},
		{"width", d.WidthMM},
		{"height", d.HeightMM},
	}
	for _, axis := range axes {
		if axis.value <= 0 {
			return fmt.Errorf("%s axis missing", axis.name)
		}
		if axis.value < minAxisMM || axis.value > maxAxisMM {
			return fmt.Errorf("%s axis %.1fmm outside 1-10000mm", axis.name, axis.value)
		}
	}
	for i := 0; i < len(axes); i++ {
		for j := i + 1; j < len(axes); j++ {
			ratio := axes[i].value / axes[j].value
			if ratio < 1 {
				ratio = 1 / ratio
			}
			if ratio > maxAspectRatio {
				return fmt.Errorf("%s:%s ratio %.0f:1 exceeds %.0f:1",
					axes[i].name, axes[j].name, ratio, maxAspectRatio)
			}
		}
	}
	return nil
}

// checkImages requires at least one plausible product image and scores
// overall image quality.
func checkImages(rec *product.Record) error {
	valid := 0
	hiRes := 0
	for _, raw := range rec.Images {
		if !isValidImageURL(raw) {
			continue
		}
		valid++
		lower := strings.ToLower(raw)
		for _, marker := range hiResMarkers {
			if strings.Contains(lower, marker) {
				hiRes++
				break
			}
		}
	}
	if valid == 0 {
		return fmt.Errorf("no valid image urls")
	}
	score := imageScore(valid, hiRes)
	if score < minImageScore {
		return fmt.Errorf("image score %.2f below %.2f", score, minImageScore)
	}
	return nil
}

func imageScore(valid, hiRes int) float64 {
	if valid == 0 {
		return 0
	}
	score := float64(valid) / imageCountCeiling
	if score > 1 {
		score = 1
	}
	score += hiResBonusWeight * (float64(hiRes) / float64(valid))
	if score > 1 {
		score = 1
	}
	return score
}

func isValidImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// checkMetadata requires the identifying fields and treats the record
// as incomplete when every descriptive field is blank.
func checkMetadata(rec *product.Record) error {
	if strings.TrimSpace(rec.Title) == "" {
		return fmt.Errorf("title is empty")
	}
	if rec.Platform == "" || rec.Platform == product.PlatformUnknown {
		return fmt.Errorf("platform is unknown")
	}
	if strings.TrimSpace(rec.SourceURL) == "" {
		return fmt.Errorf("source url is empty")
	}
	if strings.TrimSpace(rec.Brand) == "" &&
		strings.TrimSpace(rec.Category) == "" &&
		strings.TrimSpace(rec.Description) == "" {
		return fmt.Errorf("brand, category and description all empty")
	}
	return nil
}

// checkARCompatibility blends the evidence that the record can be
// rendered at true scale.
func checkARCompatibility(rec *product.Record) error {
	score := arScore(rec)
	if score < minARScore {
		return fmt.Errorf("ar compatibility %.2f below %.2f", score, minARScore)
	}
	return nil
}

func arScore(rec *product.Record) float64 {
	var score float64
	if checkDimensions(rec) == nil {
		score += arWeightDimensions
	}
	if hasAnyValidImage(rec) {
		score += arWeightImages
	}
	if _, ok := favorableTypes[rec.ProductType]; ok {
		score += arWeightType
	}
	if checkMetadata(rec) == nil {
		score += arWeightMetadata
	}
	return score
}

func hasAnyValidImage(rec *product.Record) bool {
	for _, raw := range rec.Images {
		if isValidImageURL(raw) {
			return true
		}
	}
	return false
}

// qualityScore averages the evidence that survived validation.
func qualityScore(rec *product.Record) float64 {
	dims := 0.0
	if checkDimensions(rec) == nil {
		dims = rec.Dimensions.Confidence
	}

	valid, hiRes := 0, 0
	for _, raw := range rec.Images {
		if isValidImageURL(raw) {
			valid++
			lower := strings.ToLower(raw)
			for _, marker := range hiResMarkers {
				if strings.Contains(lower, marker) {
					hiRes++
					break
				}
			}
		}
	}

	meta := 0.0
	for _, field := range []string{rec.Brand, rec.Category, rec.Price, rec.Description} {
		if strings.TrimSpace(field) != "" {
			meta += 0.25
		}
	}

	return clamp01(0.4*dims + 0.35*imageScore(valid, hiRes) + 0.25*meta)
}

func qualityTier(score float64) string {
	for _, t := range qualityTiers {
		if score >= t.threshold {
			return t.tier
		}
	}
	return "very_poor"
}

func trimOptionalMetadata(rec *product.Record) {
	rec.Brand = strings.TrimSpace(rec.Brand)
	rec.Category = strings.TrimSpace(rec.Category)
	rec.Price = strings.TrimSpace(rec.Price)
	rec.Description = strings.TrimSpace(rec.Description)
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
