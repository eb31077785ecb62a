package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/product"
)

func completeRecord() *product.Record {
	return &product.Record{
		Title:       "Arview Oak Standing Desk",
		Brand:       "Arview",
		Category:    "Furniture > Desks",
		Description: "Solid oak standing desk",
		Platform:    product.PlatformAmazon,
		SourceURL:   "https://www.amazon.com/dp/B0ABCDEFGH",
		ProductType: "furniture",
		Images: []string{
			"https://images.example.com/desk-1.jpg",
			"https://images.example.com/desk-2-hires.jpg",
			"https://images.example.com/desk-3.png",
		},
		Dimensions: &product.ExtractedDimensions{
			LengthMM: 1200, WidthMM: 600, HeightMM: 750,
			Unit: "cm", Confidence: 0.95, Source: "structured",
		},
	}
}

func TestValidate_CompleteRecordPasses(t *testing.T) {
	rec := completeRecord()
	require.NoError(t, New(zap.NewNop()).Validate(rec))

	assert.Equal(t, product.ValidationPassed, rec.Status)
	assert.True(t, rec.ARReady)
	assert.Greater(t, rec.QualityScore, 0.8)
	assert.NotEmpty(t, rec.QualityTier)
	assert.Empty(t, rec.Warnings)
}

func TestValidate_DimensionSanity(t *testing.T) {
	tests := []struct {
		name string
		dims *product.ExtractedDimensions
	}{
		{"missing", nil},
		{"zero axis", &product.ExtractedDimensions{LengthMM: 1200, WidthMM: 0, HeightMM: 750}},
		{"axis above 10m", &product.ExtractedDimensions{LengthMM: 12000, WidthMM: 600, HeightMM: 750}},
		{"axis below 1mm", &product.ExtractedDimensions{LengthMM: 0.5, WidthMM: 600, HeightMM: 750}},
		{"aspect ratio 100 to 1", &product.ExtractedDimensions{LengthMM: 1000, WidthMM: 500, HeightMM: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := completeRecord()
			rec.Dimensions = tt.dims
			err := New(zap.NewNop()).Validate(rec)
			require.Error(t, err)
			assert.Equal(t, product.KindValidationFailed, product.KindOf(err))
			assert.Equal(t, product.ValidationRejected, rec.Status)
		})
	}
}

func TestValidate_BoundaryRatioPasses(t *testing.T) {
	rec := completeRecord()
	// Exactly 50:1 is still within bounds.
	rec.Dimensions = &product.ExtractedDimensions{LengthMM: 500, WidthMM: 500, HeightMM: 10, Confidence: 0.9}
	assert.NoError(t, New(zap.NewNop()).Validate(rec))
}

func TestValidate_RejectsBadImages(t *testing.T) {
	tests := []struct {
		name   string
		images []string
	}{
		{"none", nil},
		{"not urls", []string{"desk.jpg", "ftp://example.com/desk.jpg"}},
		{"wrong extension", []string{"https://example.com/desk.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := completeRecord()
			rec.Images = tt.images
			err := New(zap.NewNop()).Validate(rec)
			require.Error(t, err)
			assert.Equal(t, product.ValidationRejected, rec.Status)
		})
	}
}

func TestValidate_RejectsIncompleteMetadata(t *testing.T) {
	rec := completeRecord()
	rec.Brand = ""
	rec.Category = " "
	rec.Description = ""
	err := New(zap.NewNop()).Validate(rec)
	require.Error(t, err)
	assert.Equal(t, product.KindValidationFailed, product.KindOf(err))
}

func TestValidate_TrimsOptionalFields(t *testing.T) {
	rec := completeRecord()
	rec.Brand = "  Arview  "
	rec.Price = " $499.00 "
	require.NoError(t, New(zap.NewNop()).Validate(rec))
	assert.Equal(t, "Arview", rec.Brand)
	assert.Equal(t, "$499.00", rec.Price)
}

func TestValidatePartial_TwoWarningsStillARReady(t *testing.T) {
	rec := &product.Record{
		Title:       "X",
		Brand:       "SomeBrand",
		Platform:    product.PlatformGeneric,
		SourceURL:   "https://shop.example.com/x",
		ProductType: "general",
	}
	require.NoError(t, New(zap.NewNop()).ValidatePartial(rec))

	assert.Equal(t, product.ValidationPartial, rec.Status)
	require.Len(t, rec.Warnings, 2)
	assert.Contains(t, rec.Warnings[0], "missing dimensions")
	assert.Contains(t, rec.Warnings[1], "missing images")
	assert.True(t, rec.ARReady)
}

func TestValidatePartial_ThirdWarningDropsARReady(t *testing.T) {
	// No brand, category or description: the metadata check fails too.
	rec := &product.Record{
		Title:     "X",
		Platform:  product.PlatformGeneric,
		SourceURL: "https://shop.example.com/x",
	}
	require.NoError(t, New(zap.NewNop()).ValidatePartial(rec))

	require.Len(t, rec.Warnings, 3)
	assert.Contains(t, rec.Warnings[2], "incomplete metadata")
	assert.False(t, rec.ARReady)
}

func TestValidatePartial_RejectsEmptyTitle(t *testing.T) {
	rec := &product.Record{Title: "   "}
	err := New(zap.NewNop()).ValidatePartial(rec)
	require.Error(t, err)
	assert.Equal(t, product.KindValidationFailed, product.KindOf(err))
	assert.Equal(t, product.ValidationRejected, rec.Status)
}

func TestValidatePartial_CompleteRecordHasNoWarnings(t *testing.T) {
	rec := completeRecord()
	require.NoError(t, New(zap.NewNop()).ValidatePartial(rec))
	assert.Empty(t, rec.Warnings)
	assert.True(t, rec.ARReady)
	assert.Equal(t, product.ValidationPartial, rec.Status)
}

func TestImageScore(t *testing.T) {
	assert.InDelta(t, 1.0/3, imageScore(1, 0), 0.001)
	assert.InDelta(t, 1.0, imageScore(3, 0), 0.001)
	// Count saturates at 3, hi-res fraction adds up to 0.3.
	assert.InDelta(t, 1.0, imageScore(5, 5), 0.001)
	assert.InDelta(t, 1.0/3+0.3, imageScore(1, 1), 0.001)
}

func TestQualityTier(t *testing.T) {
	tests := []struct {
		score float64
		tier  string
	}{
		{0.95, "excellent"},
		{0.9, "excellent"},
		{0.85, "very_good"},
		{0.75, "good"},
		{0.65, "fair"},
		{0.55, "poor"},
		{0.2, "very_poor"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, qualityTier(tt.score), "score %v", tt.score)
	}
}
