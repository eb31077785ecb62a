package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arview/product-crawler/internal/product"
)

const amazonProductHTML = `<!DOCTYPE html>
<html>
<head>
<title>Arview Oak Desk : Amazon</title>
<meta name="description" content="Solid oak standing desk with steel frame.">
<meta property="og:image" content="https://images.example.com/desk-main.jpg">
</head>
<body>
<div id="wayfinding-breadcrumbs_feature_div">
  <ul>
    <li><a href="/f">Furniture</a></li>
    <li><a href="/d">Desks</a></li>
  </ul>
</div>
<span id="productTitle">  Arview Oak Standing Desk,
  Electric Height Adjustable </span>
<a id="bylineInfo">Visit the Arview Store</a>
<span class="a-price"><span class="a-offscreen">$499.00</span></span>
<img src="/images/desk-side.png" data-old-hires="https://images.example.com/desk-hires.jpg">
<div id="feature-bullets">
  <ul>
    <li>Electric dual-motor lift</li>
    <li>Product Dimensions: 120 x 60 x 75 cm</li>
  </ul>
</div>
<table id="productDetails_techSpec_section_1">
  <tr><th>Material</th><td>Oak, Steel</td></tr>
  <tr><th>Color</th><td>Natural Oak</td></tr>
  <tr><th>Product Dimensions</th><td>120 x 60 x 75 cm</td></tr>
</table>
<div id="productDescription"><p>A solid oak desk in natural brown.</p></div>
</body>
</html>`

func TestParsePage_AmazonProduct(t *testing.T) {
	content, err := ParsePage([]byte(amazonProductHTML), product.PlatformAmazon, "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)

	assert.Equal(t, product.PlatformAmazon, content.Platform)
	assert.Equal(t, "Arview Oak Standing Desk, Electric Height Adjustable", content.Title)
	assert.Equal(t, "Arview", content.Brand)
	assert.Equal(t, "$499.00", content.Price)
	assert.Equal(t, "Furniture > Desks", content.Category)
	assert.Contains(t, content.Description, "Solid oak standing desk")
	assert.Contains(t, content.Description, "natural brown")

	assert.Contains(t, content.Images, "https://images.example.com/desk-main.jpg")
	assert.Contains(t, content.Images, "https://images.example.com/desk-hires.jpg")
	// Relative sources resolve against the page URL.
	assert.Contains(t, content.Images, "https://www.amazon.com/images/desk-side.png")

	assert.Equal(t, "Oak, Steel", content.SpecRows["Material"])
	assert.Equal(t, "120 x 60 x 75 cm", content.SpecRows["Product Dimensions"])
	assert.Contains(t, content.Bullets, "Electric dual-motor lift")

	assert.Contains(t, content.Materials, "oak")
	assert.Contains(t, content.Materials, "steel")
	assert.Contains(t, content.Colors, "brown")
}

func TestParsePage_FeedsStructuredStrategy(t *testing.T) {
	content, err := ParsePage([]byte(amazonProductHTML), product.PlatformAmazon, "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)

	dims, err := DefaultChain(nil, nil).Extract(t.Context(), content)
	require.NoError(t, err)
	assert.Equal(t, "structured", dims.Source)
	assert.Equal(t, 1200.0, dims.LengthMM)
	assert.Equal(t, 600.0, dims.WidthMM)
	assert.Equal(t, 750.0, dims.HeightMM)
}

func TestParsePage_GenericFallbacks(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="Handmade Ceramic Vase">
<meta property="product:brand" content="Studio Clay">
<meta property="product:price:amount" content="39.99">
</head><body>
<dl><dt>Größe</dt><dd>12 x 12 x 25 cm</dd></dl>
</body></html>`

	content, err := ParsePage([]byte(html), product.PlatformGeneric, "https://shop.example.com/vase")
	require.NoError(t, err)
	assert.Equal(t, "Handmade Ceramic Vase", content.Title)
	assert.Equal(t, "Studio Clay", content.Brand)
	assert.Equal(t, "39.99", content.Price)
	assert.Equal(t, "12 x 12 x 25 cm", content.SpecRows["Größe"])
	assert.Equal(t, "ceramic", content.Materials[0])
}

func TestParsePage_EmptyBody(t *testing.T) {
	content, err := ParsePage(nil, product.PlatformGeneric, "https://shop.example.com/x")
	require.NoError(t, err)
	assert.Empty(t, content.Title)
	assert.Empty(t, content.Images)
	assert.Empty(t, content.SpecRows)
}
